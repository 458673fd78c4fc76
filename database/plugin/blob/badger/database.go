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

package badger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/numbat/database/types"
)

// Default cache sizes for BadgerDB (in bytes)
const (
	DefaultBlockCacheSize = 268435456 // 256MB
	DefaultIndexCacheSize = 67108864  // 64MB
)

// Defaults for the LSM tree and value log
const (
	DefaultValueLogFileSize = 1073741823 // 1GB - 1
	DefaultMemTableSize     = 67108864   // 64MB
	// Raw transactions larger than this go to the value log
	DefaultValueThreshold = 1024
)

const gcInterval = 5 * time.Minute

var errTxnOtherStore = errors.New("transaction from different store")

// badgerTxn wraps a badger transaction and implements types.Txn
type badgerTxn struct {
	store    *BlobStoreBadger
	tx       *badger.Txn
	finished bool
}

func newBadgerTxn(store *BlobStoreBadger, tx *badger.Txn) *badgerTxn {
	return &badgerTxn{store: store, tx: tx}
}

// validateTxn returns the underlying *badgerTxn of a types.Txn created by
// this store
func (d *BlobStoreBadger) validateTxn(txn types.Txn) (*badgerTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	bTxn, ok := txn.(*badgerTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if bTxn.store != d {
		return nil, errTxnOtherStore
	}
	if bTxn.finished {
		return nil, types.ErrTxnFinished
	}
	if bTxn.tx == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return bTxn, nil
}

func (t *badgerTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.tx == nil {
		return nil
	}
	return t.tx.Commit()
}

func (t *badgerTxn) Rollback() error {
	if t.finished {
		return nil
	}
	if t.tx != nil {
		t.tx.Discard()
	}
	t.finished = true
	return nil
}

type badgerIterator struct {
	iter *badger.Iterator
}

func (it *badgerIterator) Rewind()            { it.iter.Rewind() }
func (it *badgerIterator) Seek(prefix []byte) { it.iter.Seek(prefix) }
func (it *badgerIterator) Valid() bool        { return it.iter.Valid() }

func (it *badgerIterator) ValidForPrefix(p []byte) bool {
	return it.iter.ValidForPrefix(p)
}

func (it *badgerIterator) Next() { it.iter.Next() }

func (it *badgerIterator) Item() types.BlobItem {
	return &badgerItem{item: it.iter.Item()}
}

func (it *badgerIterator) Close()     { it.iter.Close() }
func (it *badgerIterator) Err() error { return nil }

type errorIterator struct {
	err error
}

func (it *errorIterator) Rewind()                      {}
func (it *errorIterator) Seek(prefix []byte)           {}
func (it *errorIterator) Valid() bool                  { return false }
func (it *errorIterator) ValidForPrefix(p []byte) bool { return false }
func (it *errorIterator) Next()                        {}
func (it *errorIterator) Item() types.BlobItem         { return nil }
func (it *errorIterator) Close()                       {}
func (it *errorIterator) Err() error                   { return it.err }

type badgerItem struct {
	item *badger.Item
}

func (i *badgerItem) Key() []byte {
	return i.item.KeyCopy(nil)
}

func (i *badgerItem) ValueCopy(dst []byte) ([]byte, error) {
	return i.item.ValueCopy(dst)
}

// BlobStoreBadger keeps the raw transaction archive in badger. Without a data
// dir the store lives in memory only.
type BlobStoreBadger struct {
	promRegistry     prometheus.Registerer
	db               *badger.DB
	logger           *slog.Logger
	gcTicker         *time.Ticker
	gcStopCh         chan struct{}
	dataDir          string
	gcWg             sync.WaitGroup
	blockCacheSize   uint64
	indexCacheSize   uint64
	valueLogFileSize int64
	memTableSize     int64
	valueThreshold   int64
	gcEnabled        bool
}

// New opens the blob store
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	db := &BlobStoreBadger{
		gcEnabled:        true,
		blockCacheSize:   DefaultBlockCacheSize,
		indexCacheSize:   DefaultIndexCacheSize,
		valueLogFileSize: DefaultValueLogFileSize,
		memTableSize:     DefaultMemTableSize,
		valueThreshold:   DefaultValueThreshold,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if db.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true).
			WithValueThreshold(db.valueThreshold)
		// Nothing to collect in memory
		db.gcEnabled = false
	} else {
		if _, err := os.Stat(db.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(db.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(db.dataDir, "blob")).
			WithBlockCacheSize(int64(db.blockCacheSize)). //nolint:gosec
			WithIndexCacheSize(int64(db.indexCacheSize)). //nolint:gosec
			WithValueLogFileSize(db.valueLogFileSize).
			WithMemTableSize(db.memTableSize).
			WithValueThreshold(db.valueThreshold).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(NewBadgerLogger(db.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	blobDb, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	db.db = blobDb
	if db.promRegistry != nil {
		if err := db.registerBlobMetrics(); err != nil {
			_ = blobDb.Close()
			return nil, err
		}
	}
	if db.gcEnabled {
		db.gcTicker = time.NewTicker(gcInterval)
		db.gcStopCh = make(chan struct{})
		db.gcWg.Add(1)
		go db.blobGc(db.gcTicker, db.gcStopCh)
	}
	return db, nil
}

func (d *BlobStoreBadger) blobGc(t *time.Ticker, stop <-chan struct{}) {
	defer d.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := d.db.RunValueLogGC(0.5)
			if err != nil {
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						fmt.Sprintf("blob DB: GC failure: %s", err),
						"component", "database",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// Close stops the GC loop and closes the database
func (d *BlobStoreBadger) Close() error {
	if d.gcTicker != nil {
		d.gcTicker.Stop()
		close(d.gcStopCh)
		d.gcWg.Wait()
		d.gcTicker = nil
	}
	return d.db.Close()
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

// NewTransaction creates a new badger transaction
func (d *BlobStoreBadger) NewTransaction(update bool) types.Txn {
	return newBadgerTxn(d, d.db.NewTransaction(update))
}

// Get retrieves a value within a transaction
func (d *BlobStoreBadger) Get(txn types.Txn, key []byte) ([]byte, error) {
	bTxn, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	item, err := bTxn.tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set stores a key-value pair within a transaction
func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	bTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	return bTxn.tx.Set(key, val)
}

// Delete removes a key within a transaction
func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	bTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	return bTxn.tx.Delete(key)
}

// NewIterator creates an iterator within a transaction. Items must only be
// accessed while the transaction is still active.
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	bTxn, err := d.validateTxn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	return &badgerIterator{
		iter: bTxn.tx.NewIterator(
			badger.IteratorOptions{
				Prefix:  opts.Prefix,
				Reverse: opts.Reverse,
			},
		),
	}
}
