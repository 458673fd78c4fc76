// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metadata implements the relational half of the persistence
// gateway on gorm. The backend subpackages only open connections.
package metadata

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/plugin/metadata/mysql"
	"github.com/blinklabs-io/numbat/database/plugin/metadata/postgres"
	"github.com/blinklabs-io/numbat/database/plugin/metadata/sqlite"
)

const (
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMysql    = "mysql"
)

const vacuumInterval = 24 * time.Hour

// Config selects and configures the backend
type Config struct {
	Logger  *slog.Logger
	Backend string
	// sqlite only. Empty means in-memory.
	DataDir  string
	Dsn      string
	Host     string
	User     string
	Password string
	Database string
	SslMode  string
	Port     uint
}

// Store runs the ledger fact queries against any of the backends
type Store struct {
	db          *gorm.DB
	logger      *slog.Logger
	timerVacuum *time.Timer
	backend     string
	dataDir     string
	timerMutex  sync.Mutex
	vacuumWG    sync.WaitGroup
	closed      bool
}

// New opens the configured backend and migrates the schema
func New(cfg Config) (*Store, error) {
	var db *gorm.DB
	var err error
	switch cfg.Backend {
	case BackendSqlite, "":
		cfg.Backend = BackendSqlite
		db, err = sqlite.Open(cfg.DataDir)
	case BackendPostgres:
		db, err = postgres.Open(
			postgres.Config{
				Dsn:      cfg.Dsn,
				Host:     cfg.Host,
				Port:     cfg.Port,
				User:     cfg.User,
				Password: cfg.Password,
				Database: cfg.Database,
				SslMode:  cfg.SslMode,
			},
		)
	case BackendMysql:
		db, err = mysql.Open(
			mysql.Config{
				Dsn:      cfg.Dsn,
				Host:     cfg.Host,
				Port:     cfg.Port,
				User:     cfg.User,
				Password: cfg.Password,
				Database: cfg.Database,
				SslMode:  cfg.SslMode,
			},
		)
	default:
		return nil, fmt.Errorf("unknown metadata backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s metadata store: %w", cfg.Backend, err)
	}
	return NewFromDB(db, cfg.Backend, cfg.DataDir, cfg.Logger)
}

// NewFromDB wraps an already open connection
func NewFromDB(
	db *gorm.DB,
	backend string,
	dataDir string,
	logger *slog.Logger,
) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{
		db:      db,
		logger:  logger,
		backend: backend,
		dataDir: dataDir,
	}
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	s.logger.Debug(
		"migrating metadata schema",
		"component", "database",
		"backend", backend,
	)
	if err := s.db.AutoMigrate(&CommitTimestamp{}); err != nil {
		return nil, err
	}
	if err := s.db.AutoMigrate(models.MigrateModels...); err != nil {
		return nil, err
	}
	if backend == BackendSqlite && dataDir != "" {
		s.scheduleDailyVacuum()
	}
	return s, nil
}

// DB returns the underlying gorm handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Backend returns the backend name
func (s *Store) Backend() string {
	return s.backend
}

func (s *Store) runVacuum() error {
	s.timerMutex.Lock()
	if s.closed {
		s.timerMutex.Unlock()
		return nil
	}
	s.vacuumWG.Add(1)
	s.timerMutex.Unlock()
	defer s.vacuumWG.Done()
	return s.db.Exec("VACUUM").Error
}

func (s *Store) scheduleDailyVacuum() {
	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()
	if s.closed {
		return
	}
	if s.timerVacuum != nil {
		s.timerVacuum.Stop()
	}
	s.timerVacuum = time.AfterFunc(
		vacuumInterval,
		func() {
			defer s.scheduleDailyVacuum()
			s.logger.Debug(
				"running vacuum on sqlite metadata database",
				"component", "database",
			)
			if err := s.runVacuum(); err != nil {
				s.logger.Error(
					"failed to free unused space in metadata store",
					"component", "database",
					"error", err,
				)
			}
		},
	)
}

// Close stops background jobs and closes the connection pool
func (s *Store) Close() error {
	s.timerMutex.Lock()
	s.closed = true
	if s.timerVacuum != nil {
		s.timerVacuum.Stop()
		s.timerVacuum = nil
	}
	s.timerMutex.Unlock()
	s.vacuumWG.Wait()
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}
