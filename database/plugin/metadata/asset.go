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
	"math/big"
	"strings"

	"gorm.io/gorm"

	"github.com/blinklabs-io/numbat/database/models"
	"github.com/blinklabs-io/numbat/database/types"
	"github.com/blinklabs-io/numbat/ledger"
)

// Text columns of some backends cannot hold NUL
var nulReplacer = strings.NewReplacer("\x00", `\u0000`)

// UpsertNativeAssets applies a block's mints and burns to the asset catalog.
// It returns the assets minted by the block, which are the candidates for
// CIP-25 metadata.
func (s *Store) UpsertNativeAssets(
	height uint64,
	assets []ledger.NativeAsset,
	txn types.Txn,
) ([]ledger.KnownAsset, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []ledger.KnownAsset
	for _, asset := range assets {
		amount := asset.Amount
		if amount == nil {
			amount = new(big.Int)
		}
		row := models.LedgerAsset{}
		result := db.Where("policy = ? AND name = ?", asset.Policy, asset.Name).
			First(&row)
		switch {
		case result.Error == nil:
			row.Supply = types.NewBigInt(
				new(big.Int).Add(row.Supply.Int, amount),
			)
			if err := db.Model(&row).Update("supply", row.Supply).Error; err != nil {
				return nil, err
			}
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			row = models.LedgerAsset{
				Policy: asset.Policy,
				Name:   asset.Name,
				Supply: types.NewBigInt(amount),
				Height: height,
			}
			if err := db.Create(&row).Error; err != nil {
				return nil, err
			}
		default:
			return nil, result.Error
		}
		mint := models.LedgerAssetMint{
			AssetID: row.ID,
			Height:  height,
			TxId:    asset.TxID,
			Amount:  types.NewBigInt(amount),
		}
		if err := db.Create(&mint).Error; err != nil {
			return nil, err
		}
		if amount.Sign() > 0 {
			ret = append(
				ret,
				ledger.KnownAsset{
					ID:     row.ID,
					Policy: row.Policy,
					Name:   row.Name,
				},
			)
		}
	}
	return ret, nil
}

// LookupAsset finds a catalog entry by policy and hex name
func (s *Store) LookupAsset(
	policy string,
	name string,
	txn types.Txn,
) (ledger.KnownAsset, bool, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return ledger.KnownAsset{}, false, err
	}
	row := models.LedgerAsset{}
	result := db.Where("policy = ? AND name = ?", policy, name).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ledger.KnownAsset{}, false, nil
		}
		return ledger.KnownAsset{}, false, result.Error
	}
	return ledger.KnownAsset{ID: row.ID, Policy: row.Policy, Name: row.Name}, true, nil
}

// GetAsset returns a catalog entry with its supply, or nil if it is unknown
func (s *Store) GetAsset(
	policy string,
	name string,
	txn types.Txn,
) (*models.LedgerAsset, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.LedgerAsset{}
	result := db.Where("policy = ? AND name = ?", policy, name).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// InsertTokenMetadata stores metadata trees. The current trees of the
// affected assets are marked replaced at height and kept for rollback.
func (s *Store) InsertTokenMetadata(
	height uint64,
	nodes []ledger.TokenMetadata,
	txn types.Txn,
) error {
	if len(nodes) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	assetIds := make([]uint, 0, len(nodes))
	seen := make(map[uint]struct{})
	for _, node := range nodes {
		if _, ok := seen[node.AssetID]; ok {
			continue
		}
		seen[node.AssetID] = struct{}{}
		assetIds = append(assetIds, node.AssetID)
	}
	result := db.Model(&models.LedgerAssetMetadata{}).
		Where("asset_id IN ? AND replaced_at IS NULL", assetIds).
		Update("replaced_at", height)
	if result.Error != nil {
		return result.Error
	}
	for _, node := range nodes {
		if err := insertMetadataNode(db, height, node, nil); err != nil {
			return err
		}
	}
	return nil
}

func insertMetadataNode(
	db *gorm.DB,
	height uint64,
	node ledger.TokenMetadata,
	parentId *uint,
) error {
	row := models.LedgerAssetMetadata{
		AssetID:   node.AssetID,
		KeyType:   node.KeyType,
		Key:       nulReplacer.Replace(node.Key),
		ValueType: node.ValueType,
		Value:     nulReplacer.Replace(node.Value),
		NestLevel: node.NestLevel,
		ParentID:  parentId,
		Height:    height,
	}
	if err := db.Create(&row).Error; err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := insertMetadataNode(db, height, child, &row.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetTokenMetadata rebuilds the current metadata trees of an asset in
// insertion order
func (s *Store) GetTokenMetadata(
	assetId uint,
	txn types.Txn,
) ([]ledger.TokenMetadata, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var rows []models.LedgerAssetMetadata
	result := db.Where("asset_id = ? AND replaced_at IS NULL", assetId).
		Order("id").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	children := make(map[uint][]int)
	var roots []int
	for i, row := range rows {
		if row.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		children[*row.ParentID] = append(children[*row.ParentID], i)
	}
	var build func(int) ledger.TokenMetadata
	build = func(i int) ledger.TokenMetadata {
		row := rows[i]
		ret := ledger.TokenMetadata{
			AssetID:   row.AssetID,
			KeyType:   row.KeyType,
			Key:       row.Key,
			ValueType: row.ValueType,
			Value:     row.Value,
			NestLevel: row.NestLevel,
		}
		for _, child := range children[row.ID] {
			ret.Children = append(ret.Children, build(child))
		}
		return ret
	}
	ret := make([]ledger.TokenMetadata, 0, len(roots))
	for _, i := range roots {
		ret = append(ret, build(i))
	}
	return ret, nil
}
