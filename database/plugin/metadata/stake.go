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
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/types"
	"github.com/blinklabs-io/numbat/ledger"
)

// CreateStakeRegistrations inserts registrations, ignoring ones already
// recorded for the same certificate pointer
func (s *Store) CreateStakeRegistrations(
	height uint64,
	regs []ledger.StakeRegistration,
	txn types.Txn,
) error {
	if len(regs) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	rows := make([]models.StakeRegistration, 0, len(regs))
	for _, reg := range regs {
		rows = append(
			rows,
			models.StakeRegistration{
				StakeAddress: reg.StakeAddress,
				Slot:         reg.Slot,
				TxIndex:      reg.TxIndex,
				CertIndex:    reg.CertIndex,
				Height:       height,
			},
		)
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *Store) CreateStakeDelegations(
	delegations []ledger.StakeDelegation,
	txn types.Txn,
) error {
	if len(delegations) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	rows := make([]models.StakeDelegation, 0, len(delegations))
	for _, d := range delegations {
		rows = append(
			rows,
			models.StakeDelegation{
				StakeAddress: d.StakeAddress,
				PoolID:       d.PoolID,
				Epoch:        d.Epoch,
				Height:       d.Height,
			},
		)
	}
	return db.Create(&rows).Error
}

// GetStakeRegistrations returns the registrations of a stake address
func (s *Store) GetStakeRegistrations(
	stakeAddress string,
	txn types.Txn,
) ([]models.StakeRegistration, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.StakeRegistration
	result := db.Where("stake_address = ?", stakeAddress).
		Order("slot, tx_index, cert_index").
		Find(&ret)
	return ret, result.Error
}

// GetLatestStakeDelegation returns the most recent delegation of a stake
// address, or nil if it never delegated
func (s *Store) GetLatestStakeDelegation(
	stakeAddress string,
	txn types.Txn,
) (*models.StakeDelegation, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.StakeDelegation
	result := db.Where("stake_address = ?", stakeAddress).
		Order("height DESC, id DESC").
		Limit(1).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(ret) == 0 {
		return nil, nil
	}
	return &ret[0], nil
}
