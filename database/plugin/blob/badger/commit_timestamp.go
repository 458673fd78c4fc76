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
	"encoding/binary"
	"fmt"

	"github.com/blinklabs-io/numbat/database/types"
)

// The commit stamp lives next to the raw transactions and is compared with the
// one in the metadata store on startup
var commitTimestampKey = []byte("numbat_commit_timestamp")

func (d *BlobStoreBadger) GetCommitTimestamp() (int64, error) {
	txn := d.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := d.Get(txn, commitTimestampKey)
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("malformed commit timestamp: %d bytes", len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil //nolint:gosec
}

func (d *BlobStoreBadger) SetCommitTimestamp(
	timestamp int64,
	txn types.Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	return d.Set(
		txn,
		commitTimestampKey,
		binary.BigEndian.AppendUint64(nil, uint64(timestamp)), //nolint:gosec
	)
}
