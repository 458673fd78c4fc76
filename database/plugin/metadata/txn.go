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

package metadata

import (
	"gorm.io/gorm"

	"github.com/blinklabs-io/numbat/database/types"
)

// metadataTxn wraps a gorm transaction and implements types.Txn
type metadataTxn struct {
	store    *Store
	db       *gorm.DB
	beginErr error
	finished bool
}

// Transaction begins a new transaction. A failure to begin is reported by
// every use of the returned handle.
func (s *Store) Transaction() types.Txn {
	tx := s.db.Begin()
	if tx.Error != nil {
		return &metadataTxn{store: s, beginErr: tx.Error}
	}
	return &metadataTxn{store: s, db: tx}
}

func (t *metadataTxn) Commit() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	if err := t.db.Commit().Error; err != nil {
		return err
	}
	t.finished = true
	return nil
}

func (t *metadataTxn) Rollback() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	t.finished = true
	return t.db.Rollback().Error
}

// resolveDB returns the handle for txn, or the store handle when txn is nil
func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	mTxn, ok := txn.(*metadataTxn)
	if !ok || mTxn.store != s {
		return nil, types.ErrTxnWrongType
	}
	if mTxn.beginErr != nil {
		return nil, mTxn.beginErr
	}
	if mTxn.finished {
		return nil, types.ErrTxnFinished
	}
	return mTxn.db, nil
}
