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
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/types"
	"github.com/blinklabs-io/numbat/ledger"
)

const utxoBatchSize = 500

// CreateUtxos inserts created outputs and their native assets
func (s *Store) CreateUtxos(
	height uint64,
	slot uint64,
	utxos []ledger.CreatedUtxo,
	txn types.Txn,
) error {
	if len(utxos) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	rows := make([]models.Utxo, 0, len(utxos))
	for _, utxo := range utxos {
		row := models.Utxo{
			TxId:         utxo.TxID,
			TxIx:         utxo.Index,
			Address:      utxo.Address,
			AddressType:  utxo.AddressType,
			StakeAddress: utxo.StakeAddress,
			Lovelace:     types.NewBigInt(utxo.Lovelace),
			DatumHash:    utxo.DatumHash,
			Datum:        utxo.Datum,
			ScriptRef:    utxo.ScriptRef,
			PaymentCred:  utxo.PaymentCred,
			StakeCred:    utxo.StakeCred,
			Cbor:         utxo.Cbor,
			BlockCreated: height,
			SlotCreated:  slot,
		}
		for _, asset := range utxo.NativeAssets {
			row.Assets = append(
				row.Assets,
				models.UtxoAsset{
					Policy: asset.Policy,
					Name:   asset.Name,
					Amount: types.NewBigInt(asset.Amount),
				},
			)
		}
		rows = append(rows, row)
	}
	return db.CreateInBatches(rows, utxoBatchSize).Error
}

// SpendUtxos marks outputs consumed at height. Outputs that are not known
// are ignored.
func (s *Store) SpendUtxos(
	height uint64,
	spent []ledger.SpentUtxo,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	for _, utxo := range spent {
		result := db.Model(&models.Utxo{}).
			Where("tx_id = ? AND tx_ix = ?", utxo.TxID, utxo.Index).
			Updates(
				map[string]any{
					"block_spent":       height,
					"transaction_spent": utxo.TxSpent,
				},
			)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// GetUtxo returns an output by reference, or nil if it is not known
func (s *Store) GetUtxo(
	txId string,
	idx uint32,
	txn types.Txn,
) (*models.Utxo, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Utxo{}
	result := db.Preload("Assets").
		First(ret, "tx_id = ? AND tx_ix = ?", txId, idx)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetUnspentUtxosByAddress returns the unspent outputs paying to address
func (s *Store) GetUnspentUtxosByAddress(
	address string,
	txn types.Txn,
) ([]models.Utxo, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Utxo
	result := db.Preload("Assets").
		Where("address = ? AND block_spent IS NULL", address).
		Order("id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// PruneSpentBefore deletes outputs spent below height
func (s *Store) PruneSpentBefore(height uint64, txn types.Txn) (int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	spentIds := db.Model(&models.Utxo{}).
		Select("id").
		Where("block_spent < ?", height)
	if result := db.Where("utxo_id IN (?)", spentIds).Delete(&models.UtxoAsset{}); result.Error != nil {
		return 0, result.Error
	}
	result := db.Where("block_spent < ?", height).Delete(&models.Utxo{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CreateUtxoHistory records which credentials were paid by a transaction
func (s *Store) CreateUtxoHistory(
	height uint64,
	utxos []ledger.CreatedUtxo,
	txn types.Txn,
) error {
	var rows []models.UtxoHistory
	seen := make(map[string]struct{})
	for _, utxo := range utxos {
		if !strings.HasPrefix(utxo.Address, "addr") {
			continue
		}
		key := utxo.PaymentCred + "|" + utxo.StakeCred + "|" + utxo.TxID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rows = append(
			rows,
			models.UtxoHistory{
				PaymentCred: utxo.PaymentCred,
				StakeCred:   utxo.StakeCred,
				TxId:        utxo.TxID,
				Height:      height,
			},
		)
	}
	if len(rows) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, utxoBatchSize).Error
}
