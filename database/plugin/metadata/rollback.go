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
	"fmt"
	"math/big"

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/types"
)

// RollbackToHeight invalidates every ledger fact recorded at or above height.
// Applying the same blocks again afterwards yields the same state.
func (s *Store) RollbackToHeight(height uint64, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := s.revertAssetMints(height, txn); err != nil {
		return fmt.Errorf("revert asset mints: %w", err)
	}
	// Outputs created in the rolled back range go away with their assets
	createdIds := db.Model(&models.Utxo{}).
		Select("id").
		Where("block_created >= ?", height)
	if err := db.Where("utxo_id IN (?)", createdIds).Delete(&models.UtxoAsset{}).Error; err != nil {
		return fmt.Errorf("delete utxo assets: %w", err)
	}
	if err := db.Where("block_created >= ?", height).Delete(&models.Utxo{}).Error; err != nil {
		return fmt.Errorf("delete utxos: %w", err)
	}
	// Outputs spent in the rolled back range become unspent again
	result := db.Model(&models.Utxo{}).
		Where("block_spent >= ?", height).
		Updates(
			map[string]any{
				"block_spent":       nil,
				"transaction_spent": "",
			},
		)
	if result.Error != nil {
		return fmt.Errorf("unspend utxos: %w", result.Error)
	}
	// Metadata trees replaced in the range become current again
	result = db.Model(&models.LedgerAssetMetadata{}).
		Where("replaced_at >= ?", height).
		Update("replaced_at", nil)
	if result.Error != nil {
		return fmt.Errorf("restore token metadata: %w", result.Error)
	}
	for _, model := range []any{
		&models.ChainBlock{},
		&models.StakeRegistration{},
		&models.StakeDelegation{},
		&models.RawTransaction{},
		&models.PaymentStakeAddress{},
		&models.UtxoHistory{},
		&models.LedgerAssetMetadata{},
	} {
		if err := db.Where("height >= ?", height).Delete(model).Error; err != nil {
			return fmt.Errorf("delete %T: %w", model, err)
		}
	}
	return nil
}

// revertAssetMints subtracts the mints at or above height from the supply
// and drops assets first minted in that range
func (s *Store) revertAssetMints(height uint64, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	var mints []models.LedgerAssetMint
	if err := db.Where("height >= ?", height).Order("id").Find(&mints).Error; err != nil {
		return err
	}
	if len(mints) == 0 {
		return nil
	}
	deltas := make(map[uint]*big.Int)
	var assetIds []uint
	for _, mint := range mints {
		if _, ok := deltas[mint.AssetID]; !ok {
			deltas[mint.AssetID] = new(big.Int)
			assetIds = append(assetIds, mint.AssetID)
		}
		deltas[mint.AssetID].Add(deltas[mint.AssetID], mint.Amount.Int)
	}
	var assets []models.LedgerAsset
	if err := db.Where("id IN ? AND height < ?", assetIds, height).Find(&assets).Error; err != nil {
		return err
	}
	for _, asset := range assets {
		supply := types.NewBigInt(
			new(big.Int).Sub(asset.Supply.Int, deltas[asset.ID]),
		)
		if err := db.Model(&asset).Update("supply", supply).Error; err != nil {
			return err
		}
	}
	if err := db.Where("height >= ?", height).Delete(&models.LedgerAssetMint{}).Error; err != nil {
		return err
	}
	return db.Where("height >= ?", height).Delete(&models.LedgerAsset{}).Error
}
