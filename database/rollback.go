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
	"fmt"
)

// RollbackToHeight invalidates every ledger fact at or above height in both
// stores
func (d *Database) RollbackToHeight(height uint64, txn *Txn) error {
	if err := d.metadata.RollbackToHeight(height, txn.Metadata()); err != nil {
		return fmt.Errorf("rollback metadata to height %d: %w", height, err)
	}
	if err := d.deleteRawTransactionBlobs(height, txn); err != nil {
		return fmt.Errorf("rollback blob to height %d: %w", height, err)
	}
	return nil
}
