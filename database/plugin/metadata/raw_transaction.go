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
	"github.com/blinklabs-io/numbat/ledger"
)

// CreateRawTransactions archives transactions. With keepBytes unset only the
// index row is written and the caller stores the bytes elsewhere.
func (s *Store) CreateRawTransactions(
	txs []ledger.RawTransaction,
	keepBytes bool,
	txn types.Txn,
) error {
	if len(txs) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	rows := make([]models.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		row := models.RawTransaction{
			TxId:                 tx.TxID,
			Height:               tx.Height,
			Slot:                 tx.Slot,
			BlockSize:            tx.BlockSize,
			BlockBodyHash:        tx.BlockBodyHash,
			ProtocolVersionMajor: tx.ProtocolVersionMajor,
			ProtocolVersionMinor: tx.ProtocolVersionMinor,
		}
		if keepBytes {
			row.Tx = tx.Tx
		}
		rows = append(rows, row)
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, utxoBatchSize).Error
}

// GetRawTransaction returns an archived transaction, or nil if unknown
func (s *Store) GetRawTransaction(
	txId string,
	txn types.Txn,
) (*models.RawTransaction, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.RawTransaction{}
	result := db.First(ret, "tx_id = ?", txId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// CreatePaymentStakeAddresses records address pairs not seen before
func (s *Store) CreatePaymentStakeAddresses(
	height uint64,
	pairs []ledger.PaymentStakeAddress,
	txn types.Txn,
) error {
	if len(pairs) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	rows := make([]models.PaymentStakeAddress, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(
			rows,
			models.PaymentStakeAddress{
				ReceivingAddress: pair.ReceivingAddress,
				StakeAddress:     pair.StakeAddress,
				Height:           height,
			},
		)
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, utxoBatchSize).Error
}

// GetStakeAddressForPayment returns the stake address paired with a receive
// address, or "" if none is recorded
func (s *Store) GetStakeAddressForPayment(
	receivingAddress string,
	txn types.Txn,
) (string, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return "", err
	}
	var ret []models.PaymentStakeAddress
	result := db.Where("receiving_address = ?", receivingAddress).
		Limit(1).
		Find(&ret)
	if result.Error != nil || len(ret) == 0 {
		return "", result.Error
	}
	return ret[0].StakeAddress, nil
}
