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

package postgres

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultUser     = "postgres"
	DefaultDatabase = "postgres"
	DefaultSslMode  = "disable"
	DefaultTimeZone = "UTC"
)

// Config holds the postgres connection settings. A non-empty Dsn is used as
// is and the other fields are ignored.
type Config struct {
	Dsn      string
	Host     string
	User     string
	Password string
	Database string
	SslMode  string
	TimeZone string
	Port     uint
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.SslMode == "" {
		c.SslMode = DefaultSslMode
	}
	if c.TimeZone == "" {
		c.TimeZone = DefaultTimeZone
	}
	return c
}

// DSN returns the libpq style connection string
func (c Config) DSN() string {
	if dsn := strings.TrimSpace(c.Dsn); dsn != "" {
		return dsn
	}
	c = c.withDefaults()
	parts := []string{
		"host=" + c.Host,
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + c.Database,
		"port=" + strconv.FormatUint(uint64(c.Port), 10),
		"sslmode=" + c.SslMode,
		"TimeZone=" + c.TimeZone,
	}
	return strings.Join(parts, " ")
}

// Open connects to postgres and configures the connection pool
func Open(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(
		postgres.Open(cfg.DSN()),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}
