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

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/types"
	"github.com/blinklabs-io/numbat/ledger"
)

// ChainPoint is a (slot, hash) pair offered as an intersect candidate
type ChainPoint struct {
	Hash   string
	Height uint64
	Slot   uint64
}

// IntersectOffsets are the distances from the tip of the sampled chain rows
var IntersectOffsets = []int{0, 2, 4, 8, 16, 32}

// InsertChainBlock stores the chain record of a block
func (s *Store) InsertChainBlock(block ledger.ChainBlock, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	tmpItem := models.ChainBlock{
		Height:               block.Height,
		Slot:                 block.Slot,
		Hash:                 block.Hash,
		PrevHash:             block.PrevHash,
		PoolID:               block.PoolID,
		EtaV:                 block.EtaV,
		NodeVkey:             block.NodeVkey,
		NodeVrfVkey:          block.NodeVrfVkey,
		BlockVrf:             block.BlockVrf,
		BlockVrfProof:        block.BlockVrfProof,
		EtaVrf0:              block.EtaVrf0,
		EtaVrf1:              block.EtaVrf1,
		LeaderVrf0:           block.LeaderVrf0,
		LeaderVrf1:           block.LeaderVrf1,
		BlockSize:            block.BlockSize,
		BlockBodyHash:        block.BlockBodyHash,
		PoolOpcert:           block.PoolOpcert,
		SequenceNumber:       block.SequenceNumber,
		KesPeriod:            block.KesPeriod,
		SigmaSignature:       block.SigmaSignature,
		ProtocolMajorVersion: block.ProtocolMajorVersion,
		ProtocolMinorVersion: block.ProtocolMinorVersion,
	}
	return db.Create(&tmpItem).Error
}

// GetChainBlock returns the chain record at height, or nil if there is none
func (s *Store) GetChainBlock(
	height uint64,
	txn types.Txn,
) (*models.ChainBlock, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.ChainBlock{}
	result := db.First(ret, "height = ?", height)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetTipChainBlock returns the highest chain record, or nil on an empty chain
func (s *Store) GetTipChainBlock(txn types.Txn) (*models.ChainBlock, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.ChainBlock{}
	result := db.Order("height DESC").First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// RecentChainPoints samples the chain rows at IntersectOffsets from the tip,
// newest first
func (s *Store) RecentChainPoints(txn types.Txn) ([]ChainPoint, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var rows []models.ChainBlock
	maxOffset := IntersectOffsets[len(IntersectOffsets)-1]
	result := db.Select("height", "slot", "hash").
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
				Slot:   rows[i].Slot,
			}
		},
	), nil
}

func samplePoints(count int, at func(int) ChainPoint) []ChainPoint {
	ret := make([]ChainPoint, 0, len(IntersectOffsets))
	for _, offset := range IntersectOffsets {
		if offset >= count {
			break
		}
		ret = append(ret, at(offset))
	}
	return ret
}
