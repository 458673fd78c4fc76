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

package database_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/database/plugin/blob/badger"
	"github.com/blinklabs-io/numbat/database/types"
	"github.com/blinklabs-io/numbat/ledger"
)

func newTestDatabase(t *testing.T, blob bool) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{BlobEnabled: blob})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRawTransactionsInMetadata(t *testing.T) {
	db := newTestDatabase(t, false)
	assert.Nil(t, db.Blob())
	txn := db.Transaction(true)
	require.NoError(
		t,
		db.StoreRawTransactions(
			[]ledger.RawTransaction{{Height: 3, TxID: "t1", Tx: []byte{0x84, 0x01}}},
			txn,
		),
	)
	require.NoError(t, txn.Commit())
	raw, err := db.RawTransaction("t1", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x84, 0x01}, raw)
	_, err = db.RawTransaction("t2", nil)
	require.ErrorIs(t, err, database.ErrRawTransactionNotFound)
}

func TestRawTransactionsInBlobRollback(t *testing.T) {
	db := newTestDatabase(t, true)
	require.NotNil(t, db.Blob())
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.StoreRawTransactions(
			[]ledger.RawTransaction{
				{Height: 3, TxID: "t1", Tx: []byte{0x01}},
				{Height: 4, TxID: "t2", Tx: []byte{0x02}},
				{Height: 5, TxID: "t3", Tx: []byte{0x03}},
			},
			txn,
		)
	})
	require.NoError(t, err)
	// Only the index row lives in the metadata store
	row, err := db.Metadata().GetRawTransaction("t1", nil)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Empty(t, row.Tx)

	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.RollbackToHeight(4, txn)
	})
	require.NoError(t, err)
	raw, err := db.RawTransaction("t1", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, raw)
	for _, id := range []string{"t2", "t3"} {
		_, err = db.RawTransaction(id, nil)
		require.ErrorIs(t, err, database.ErrRawTransactionNotFound)
	}
	row, err = db.Metadata().GetRawTransaction("t2", nil)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestTxnDoRollsBackOnError(t *testing.T) {
	db := newTestDatabase(t, true)
	errTest := errors.New("test failure")
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.StoreRawTransactions(
			[]ledger.RawTransaction{{Height: 1, TxID: "t1", Tx: []byte{0x01}}},
			txn,
		); err != nil {
			return err
		}
		return errTest
	})
	require.ErrorIs(t, err, errTest)
	_, err = db.RawTransaction("t1", nil)
	require.ErrorIs(t, err, database.ErrRawTransactionNotFound)
}

func TestTxnCommitIdempotent(t *testing.T) {
	db := newTestDatabase(t, false)
	txn := db.Transaction(true)
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Rollback())
	// Releasing a read-only transaction is always safe
	db.Transaction(false).Release()
}

func TestCommitTimestampMismatch(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir, BlobEnabled: true})
	require.NoError(t, err)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.StoreRawTransactions(
			[]ledger.RawTransaction{{Height: 1, TxID: "t1", Tx: []byte{0x01}}},
			txn,
		)
	}))
	require.NoError(t, db.Close())

	// Reopening a consistent database succeeds
	db, err = database.New(&database.Config{DataDir: dataDir, BlobEnabled: true})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	blob, err := badger.New(badger.WithDataDir(dataDir), badger.WithGc(false))
	require.NoError(t, err)
	txn := blob.NewTransaction(true)
	require.NoError(t, blob.SetCommitTimestamp(1, txn))
	require.NoError(t, txn.Commit())
	require.NoError(t, blob.Close())

	db, err = database.New(&database.Config{DataDir: dataDir, BlobEnabled: true})
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, int64(1), tsErr.BlobTimestamp)
	assert.Positive(t, tsErr.MetadataTimestamp)
	require.NotNil(t, db)
	require.NoError(t, db.Close())
}

func TestTxnWithoutStores(t *testing.T) {
	txn := database.NewTxn(&database.Database{}, true)
	require.ErrorIs(t, txn.Commit(), types.ErrNoStoreAvailable)
}
