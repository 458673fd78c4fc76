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

// Package database is the persistence gateway. Ledger facts go to the
// relational metadata store; raw transaction bytes optionally go to the
// badger blob store. Both are written through one Txn.
package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/numbat/database/plugin/blob/badger"
	"github.com/blinklabs-io/numbat/database/plugin/metadata"
)

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Metadata backend settings. DataDir is shared with the blob store.
	Metadata metadata.Config
	DataDir  string
	// Keep raw transaction bytes in the blob store instead of the metadata
	// store
	BlobEnabled bool
	// Blob block cache size in bytes, zero for the default
	BlobCacheSize uint64
}

type Database struct {
	logger   *slog.Logger
	blob     *badger.BlobStoreBadger
	metadata *metadata.Store
	dataDir  string
}

// New opens the configured stores. When the stores disagree about the last
// commit, the database is returned along with a CommitTimestampError.
func New(cfg *Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadataCfg := cfg.Metadata
	metadataCfg.Logger = logger
	if metadataCfg.DataDir == "" {
		metadataCfg.DataDir = cfg.DataDir
	}
	metadataDb, err := metadata.New(metadataCfg)
	if err != nil {
		return nil, err
	}
	db := &Database{
		logger:   logger,
		metadata: metadataDb,
		dataDir:  cfg.DataDir,
	}
	if cfg.BlobEnabled {
		blobDb, err := badger.New(
			badger.WithDataDir(cfg.DataDir),
			badger.WithLogger(logger),
			badger.WithPromRegistry(cfg.PromRegistry),
			badger.WithCacheSizes(cfg.BlobCacheSize, 0),
		)
		if err != nil {
			return nil, errors.Join(err, metadataDb.Close())
		}
		db.blob = blobDb
		if err := db.checkCommitTimestamp(); err != nil {
			// Database is available for recovery, so return it with error
			return db, err
		}
	}
	return db, nil
}

// Blob returns the blob store, or nil when raw transactions are kept in the
// metadata store
func (d *Database) Blob() *badger.BlobStoreBadger {
	return d.blob
}

// Metadata returns the metadata store
func (d *Database) Metadata() *metadata.Store {
	return d.metadata
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
