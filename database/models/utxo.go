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

package models

import (
	"github.com/blinklabs-io/numbat/database/types"
)

// Utxo is a created transaction output. Spending sets BlockSpent and
// TransactionSpent rather than deleting the row.
type Utxo struct {
	Address          string `gorm:"index;size:128"`
	AddressType      string `gorm:"size:2"`
	StakeAddress     string `gorm:"index;size:64"`
	TxId             string `gorm:"uniqueIndex:idx_utxo_tx_id_ix;size:64"`
	DatumHash        string `gorm:"size:64"`
	Datum            string
	ScriptRef        string
	PaymentCred      string `gorm:"index;size:56"`
	StakeCred        string `gorm:"size:56"`
	TransactionSpent string `gorm:"size:64"`
	Cbor             []byte
	Assets           []UtxoAsset
	Lovelace         types.BigInt
	BlockSpent       *uint64 `gorm:"index"`
	ID               uint    `gorm:"primaryKey"`
	BlockCreated     uint64  `gorm:"index"`
	SlotCreated      uint64
	TxIx             uint32 `gorm:"uniqueIndex:idx_utxo_tx_id_ix"`
}

func (Utxo) TableName() string {
	return "utxo"
}

// Spent reports whether the output has been consumed
func (u Utxo) Spent() bool {
	return u.BlockSpent != nil
}

// UtxoAsset is a native asset quantity held by a utxo
type UtxoAsset struct {
	Policy string `gorm:"index;size:56"`
	Name   string `gorm:"size:64"`
	Amount types.BigInt
	ID     uint `gorm:"primaryKey"`
	UtxoID uint `gorm:"index"`
}

func (UtxoAsset) TableName() string {
	return "utxo_asset"
}

// UtxoHistory maps credentials to the transactions that paid them. Only
// written when raw transaction archiving is enabled.
type UtxoHistory struct {
	PaymentCred string `gorm:"uniqueIndex:idx_utxo_history;size:56"`
	StakeCred   string `gorm:"uniqueIndex:idx_utxo_history;size:56"`
	TxId        string `gorm:"uniqueIndex:idx_utxo_history;size:64"`
	ID          uint   `gorm:"primaryKey"`
	Height      uint64 `gorm:"index"`
}

func (UtxoHistory) TableName() string {
	return "utxo_history"
}
