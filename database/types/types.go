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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
)

// BigInt stores arbitrary precision integers (lovelace, asset supply) as
// decimal strings
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{Int: new(big.Int)}
	}
	return BigInt{Int: new(big.Int).Set(v)}
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	if b.Int == nil {
		b.Int = new(big.Int)
	}
	var v string
	switch tmpVal := val.(type) {
	case string:
		v = tmpVal
	case []byte:
		v = string(tmpVal)
	case int64:
		b.SetInt64(tmpVal)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	if _, ok := b.SetString(v, 10); !ok {
		return fmt.Errorf("failed to set big.Int value from string: %s", v)
	}
	return nil
}

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrTxnWrongType is returned when a transaction has the wrong type
var ErrTxnWrongType = errors.New("invalid transaction type")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrNoStoreAvailable is returned when no blob or metadata store is available
var ErrNoStoreAvailable = errors.New("no store available")

// ErrBlobStoreUnavailable is returned when blob store cannot be accessed
var ErrBlobStoreUnavailable = errors.New("blob store unavailable")

// ErrTxnFinished is returned when a committed or rolled back transaction is reused
var ErrTxnFinished = errors.New("transaction already finished")

// BlobItem represents a value returned by an iterator
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator provides key iteration over the blob store.
//
// Items returned by Item() must only be accessed while the transaction used
// to create the iterator is still active.
type BlobIterator interface {
	Rewind()
	Seek(prefix []byte)
	Valid() bool
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

// BlobIteratorOptions configures blob iterator creation
type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}

// Txn is a simple transaction handle for commit/rollback only.
// Database layer (Txn) coordinates metadata and blob operations separately.
type Txn interface {
	Commit() error
	Rollback() error
}
