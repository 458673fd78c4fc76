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

	"github.com/blinklabs-io/numbat/database/types"
	"github.com/blinklabs-io/numbat/ledger"
)

// ErrRawTransactionNotFound is returned when a transaction is not archived
var ErrRawTransactionNotFound = errors.New("raw transaction not found")

// StoreRawTransactions archives transactions. With a blob store the bytes
// and a height index entry go to badger and only the index row to the
// metadata store.
func (d *Database) StoreRawTransactions(
	txs []ledger.RawTransaction,
	txn *Txn,
) error {
	if len(txs) == 0 {
		return nil
	}
	if err := d.metadata.CreateRawTransactions(txs, d.blob == nil, txn.Metadata()); err != nil {
		return fmt.Errorf("store raw transactions: %w", err)
	}
	if d.blob == nil {
		return nil
	}
	for _, tx := range txs {
		txId := []byte(tx.TxID)
		if err := d.blob.Set(txn.Blob(), types.RawTxBlobKey(txId), tx.Tx); err != nil {
			return fmt.Errorf("store raw transaction %s: %w", tx.TxID, err)
		}
		if err := d.blob.Set(txn.Blob(), types.RawTxBlobIndexKey(tx.Height, txId), nil); err != nil {
			return fmt.Errorf("index raw transaction %s: %w", tx.TxID, err)
		}
	}
	return nil
}

// RawTransaction returns the archived bytes of a transaction
func (d *Database) RawTransaction(txId string, txn *Txn) ([]byte, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	if d.blob != nil {
		ret, err := d.blob.Get(txn.Blob(), types.RawTxBlobKey([]byte(txId)))
		if err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return nil, ErrRawTransactionNotFound
			}
			return nil, err
		}
		return ret, nil
	}
	row, err := d.metadata.GetRawTransaction(txId, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrRawTransactionNotFound
	}
	return row.Tx, nil
}

// deleteRawTransactionBlobs removes the archived bytes of transactions at or
// above height
func (d *Database) deleteRawTransactionBlobs(height uint64, txn *Txn) error {
	if d.blob == nil {
		return nil
	}
	prefix := []byte(types.RawTxBlobIndexKeyPrefix)
	iter := d.blob.NewIterator(txn.Blob(), types.BlobIteratorOptions{Prefix: prefix})
	var keys [][]byte
	for iter.Seek(types.RawTxBlobIndexHeightPrefix(height)); iter.ValidForPrefix(prefix); iter.Next() {
		keys = append(keys, iter.Item().Key())
	}
	err := iter.Err()
	iter.Close()
	if err != nil {
		return err
	}
	for _, key := range keys {
		txId := types.RawTxIdFromBlobIndexKey(key)
		if err := d.blob.Delete(txn.Blob(), types.RawTxBlobKey(txId)); err != nil {
			return err
		}
		if err := d.blob.Delete(txn.Blob(), key); err != nil {
			return err
		}
	}
	return nil
}
