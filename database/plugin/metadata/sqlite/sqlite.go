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

package sqlite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// WAL journal mode, disable sync on write, increase cache size to 50MB (from 2MB)
const fileConnOpts = "_pragma=journal_mode(WAL)&_pragma=sync(OFF)&_pragma=cache_size(-50000)"

const dbFileName = "metadata.sqlite"

var memoryDbCounter atomic.Uint64

// DSN returns the connection string for a database in dataDir. An empty
// dataDir selects a private in-memory database.
func DSN(dataDir string) string {
	if dataDir == "" {
		// Each in-memory database gets its own name so that separate stores
		// in one process do not share tables
		return fmt.Sprintf(
			"file:numbat-%d?mode=memory&cache=shared",
			memoryDbCounter.Add(1),
		)
	}
	return fmt.Sprintf(
		"file:%s?%s",
		filepath.Join(dataDir, dbFileName),
		fileConnOpts,
	)
}

// Open opens the sqlite metadata database, creating dataDir if needed
func Open(dataDir string) (*gorm.DB, error) {
	if dataDir != "" {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
	}
	db, err := gorm.Open(
		sqlite.Open(DSN(dataDir)),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
