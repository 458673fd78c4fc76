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
	"encoding/binary"
	"slices"
)

const (
	RawTxBlobKeyPrefix      = "rt"
	RawTxBlobIndexKeyPrefix = "rh"
)

func BlobKeyUint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// RawTxBlobKey is the key holding the raw bytes of a transaction
func RawTxBlobKey(txId []byte) []byte {
	return slices.Concat([]byte(RawTxBlobKeyPrefix), txId)
}

// RawTxBlobIndexKey orders archived transactions by block height so a
// rollback can find every transaction at or above a height
func RawTxBlobIndexKey(height uint64, txId []byte) []byte {
	return slices.Concat(
		[]byte(RawTxBlobIndexKeyPrefix),
		BlobKeyUint64ToBytes(height),
		txId,
	)
}

// RawTxBlobIndexHeightPrefix is the seek position of the first index key at height
func RawTxBlobIndexHeightPrefix(height uint64) []byte {
	return slices.Concat(
		[]byte(RawTxBlobIndexKeyPrefix),
		BlobKeyUint64ToBytes(height),
	)
}

// RawTxIdFromBlobIndexKey returns the transaction ID portion of an index key
func RawTxIdFromBlobIndexKey(key []byte) []byte {
	offset := len(RawTxBlobIndexKeyPrefix) + 8
	if len(key) <= offset {
		return nil
	}
	return slices.Clone(key[offset:])
}
