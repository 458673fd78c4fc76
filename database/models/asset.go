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

// LedgerAsset is a native asset with its circulating supply
type LedgerAsset struct {
	Policy string `gorm:"uniqueIndex:idx_ledger_asset_policy_name;size:56"`
	Name   string `gorm:"uniqueIndex:idx_ledger_asset_policy_name;size:64"`
	Supply types.BigInt
	ID     uint `gorm:"primaryKey"`
	// Height of the first mint
	Height uint64 `gorm:"index"`
}

func (LedgerAsset) TableName() string {
	return "ledger_asset"
}

// LedgerAssetMint records a supply change so it can be reverted on rollback
type LedgerAssetMint struct {
	TxId    string `gorm:"size:64"`
	Amount  types.BigInt
	ID      uint   `gorm:"primaryKey"`
	AssetID uint   `gorm:"index"`
	Height  uint64 `gorm:"index"`
}

func (LedgerAssetMint) TableName() string {
	return "ledger_asset_mint"
}

// LedgerAssetMetadata is one node of an asset's metadata tree. Rows replaced
// by newer metadata keep their data with ReplacedAt set, so a rollback can
// restore them.
type LedgerAssetMetadata struct {
	KeyType    string `gorm:"size:16"`
	Key        string
	ValueType  string `gorm:"size:16"`
	Value      string
	ParentID   *uint   `gorm:"index"`
	ReplacedAt *uint64 `gorm:"index"`
	ID         uint    `gorm:"primaryKey"`
	AssetID    uint    `gorm:"index"`
	Height     uint64  `gorm:"index"`
	NestLevel  int
}

func (LedgerAssetMetadata) TableName() string {
	return "ledger_asset_metadata"
}
