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

package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/numbat/database/types"
)

// Txn coordinates the metadata and blob transactions
type Txn struct {
	db          *Database
	blobTxn     types.Txn
	metadataTxn types.Txn
	lock        sync.Mutex
	finished    bool
	readWrite   bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if db.blob != nil {
		t.blobTxn = db.blob.NewTransaction(readWrite)
	}
	if db.metadata != nil {
		t.metadataTxn = db.metadata.Transaction()
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() types.Txn {
	return t.metadataTxn
}

// Blob returns the blob transaction handle, nil without a blob store
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// Do executes the specified function in the context of the transaction. Any
// errors returned will result in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Commit writes the blob half first and the metadata half second, both
// stamped with the same commit time. A read-only transaction is released.
func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	if !t.readWrite {
		return t.rollback()
	}
	defer func() { t.finished = true }()
	switch {
	case t.blobTxn == nil && t.metadataTxn == nil:
		return types.ErrNoStoreAvailable
	case t.blobTxn != nil && t.metadataTxn != nil:
		if err := t.db.stampCommit(t, time.Now().UnixMilli()); err != nil {
			t.discard(t.blobTxn, t.metadataTxn)
			return fmt.Errorf("commit timestamp: %w", err)
		}
	}
	if t.blobTxn != nil {
		if err := t.blobTxn.Commit(); err != nil {
			t.discard(t.metadataTxn)
			return fmt.Errorf("blob commit failed: %w", err)
		}
	}
	if t.metadataTxn == nil {
		return nil
	}
	if err := t.metadataTxn.Commit(); err != nil {
		t.db.logger.Error(
			"metadata commit failed after blob commit",
			"component", "database",
			"error", err,
		)
		t.discard(t.metadataTxn)
		return fmt.Errorf("metadata commit failed: %w", err)
	}
	return nil
}

// discard rolls back the given store transactions, ignoring their errors
func (t *Txn) discard(txns ...types.Txn) {
	for _, txn := range txns {
		if txn != nil {
			_ = txn.Rollback()
		}
	}
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	var errs []error
	if t.blobTxn != nil {
		if err := t.blobTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob rollback: %w", err))
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	t.finished = true
	return errors.Join(errs...)
}

// Release rolls back the transaction if it is still open and logs any error,
// for use in defer statements
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
