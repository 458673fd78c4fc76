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

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/types"
)

// AddressTx is a transaction touching a monitored address
type AddressTx struct {
	TxID   string
	Cbor   []byte
	Height uint64
	Slot   uint64
}

// GetAddressChainPoints samples the cursor rows of a monitored address at
// IntersectOffsets from its newest row
func (s *Store) GetAddressChainPoints(
	address string,
	txn types.Txn,
) ([]ChainPoint, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var rows []models.MonitoredAddressChain
	maxOffset := IntersectOffsets[len(IntersectOffsets)-1]
	result := db.Where("address = ? AND slot >= 0", address).
		Order("height DESC").
		Limit(maxOffset + 1).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return samplePoints(
		len(rows),
		func(i int) ChainPoint {
			return ChainPoint{
				Hash:   rows[i].Hash,
				Height: rows[i].Height,
				Slot:   uint64(rows[i].Slot), // #nosec G115
			}
		},
	), nil
}

// GetAddressCursor returns the newest cursor row of a monitored address, or
// nil before its first sync
func (s *Store) GetAddressCursor(
	address string,
	txn types.Txn,
) (*models.MonitoredAddressChain, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.MonitoredAddressChain{}
	result := db.Where("address = ?", address).
		Order("height DESC, id DESC").
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// AddAddressCursor appends a cursor row for a processed block
func (s *Store) AddAddressCursor(
	address string,
	height uint64,
	slot uint64,
	hash string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(
		&models.MonitoredAddressChain{
			Address: address,
			Height:  height,
			Slot:    int64(slot), // #nosec G115
			Hash:    hash,
		},
	).Error
}

// MarkAddressAtTip replaces the cursor history of an address by the single
// at-tip marker row for the block at height
func (s *Store) MarkAddressAtTip(
	address string,
	height uint64,
	hash string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := db.Where("address = ?", address).Delete(&models.MonitoredAddressChain{}).Error; err != nil {
		return err
	}
	return db.Create(
		&models.MonitoredAddressChain{
			Address: address,
			Height:  height,
			Slot:    -1,
			Hash:    hash,
		},
	).Error
}

// ResumeAddressCursor replaces the at-tip marker of an address by a regular
// cursor row, so that a network sync resumes after the block at height
func (s *Store) ResumeAddressCursor(
	address string,
	height uint64,
	slot uint64,
	hash string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := db.Where("address = ? AND slot < 0", address).Delete(&models.MonitoredAddressChain{}).Error; err != nil {
		return err
	}
	return db.Create(
		&models.MonitoredAddressChain{
			Address: address,
			Height:  height,
			Slot:    int64(slot), // #nosec G115
			Hash:    hash,
		},
	).Error
}

// PruneAddressCursor keeps the newest keep rows of an address cursor
func (s *Store) PruneAddressCursor(
	address string,
	keep int,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	var rows []models.MonitoredAddressChain
	result := db.Select("height").
		Where("address = ?", address).
		Order("height DESC").
		Offset(keep).
		Limit(1).
		Find(&rows)
	if result.Error != nil || len(rows) == 0 {
		return result.Error
	}
	return db.Where("address = ? AND height <= ?", address, rows[0].Height).
		Delete(&models.MonitoredAddressChain{}).Error
}

// CreateAddressTxs records transactions touching a monitored address
func (s *Store) CreateAddressTxs(
	address string,
	txs []AddressTx,
	txn types.Txn,
) error {
	if len(txs) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	rows := make([]models.AddressTxLog, 0, len(txs))
	for _, tx := range txs {
		rows = append(
			rows,
			models.AddressTxLog{
				Address: address,
				TxId:    tx.TxID,
				Cbor:    tx.Cbor,
				Height:  tx.Height,
				Slot:    tx.Slot,
			},
		)
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// GetAddressTxs returns the logged transactions of an address in chain order
func (s *Store) GetAddressTxs(
	address string,
	txn types.Txn,
) ([]models.AddressTxLog, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.AddressTxLog
	result := db.Where("address = ?", address).
		Order("height, id").
		Find(&ret)
	return ret, result.Error
}

// RollbackAddress invalidates the facts of a monitored address at or above
// height
func (s *Store) RollbackAddress(
	address string,
	height uint64,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := db.Where("address = ? AND height >= ?", address, height).Delete(&models.AddressTxLog{}).Error; err != nil {
		return err
	}
	return db.Where("address = ? AND height >= ?", address, height).
		Delete(&models.MonitoredAddressChain{}).Error
}
