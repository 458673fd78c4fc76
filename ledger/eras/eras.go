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

// Package eras maps the block formats of every ledger era onto the canonical
// block model.
package eras

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/gouroboros/ledger"
	"github.com/blinklabs-io/gouroboros/ledger/byron"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

// HeaderFunc copies the era specific header fields into the canonical block
type HeaderFunc func(lcommon.BlockHeader, *nledger.Block) error

type EraDesc struct {
	HeaderFunc HeaderFunc
	Name       string
	Id         uint
	// MetadataSupported is false for eras that predate token minting
	MetadataSupported bool
	// CollateralSupported is true for eras where failed script transactions
	// consume their collateral
	CollateralSupported bool
}

var Eras = []EraDesc{
	ByronEraDesc,
	ShelleyEraDesc,
	AllegraEraDesc,
	MaryEraDesc,
	AlonzoEraDesc,
	BabbageEraDesc,
	ConwayEraDesc,
}

var ErrUnexpectedHeader = errors.New("unexpected block header type")

func GetEraById(eraId uint) *EraDesc {
	for i := range Eras {
		if Eras[i].Id == eraId {
			return &Eras[i]
		}
	}
	return nil
}

// Normalize converts a block of any era into the canonical model. Byron
// epoch boundary blocks carry no transactions and yield nil. The logger may
// be nil.
func Normalize(block ledger.Block, logger *slog.Logger) (*nledger.Block, error) {
	if block == nil {
		return nil, errors.New("nil block")
	}
	if _, ok := block.(*byron.ByronEpochBoundaryBlock); ok {
		return nil, nil
	}
	era := GetEraById(uint(block.Era().Id))
	if era == nil {
		return nil, fmt.Errorf("unknown era ID %d", block.Era().Id)
	}
	ret := &nledger.Block{
		Era:      nledger.Era(era.Id),
		Height:   block.BlockNumber(),
		Slot:     block.SlotNumber(),
		Hash:     block.Hash().Bytes(),
		PrevHash: block.PrevHash().Bytes(),
		BodySize: block.BlockBodySize(),
		BodyHash: block.BlockBodyHash().Bytes(),
		Size:     uint64(len(block.Cbor())),
	}
	if era.Id != byron.EraIdByron {
		issuerVkey := block.IssuerVkey()
		ret.IssuerVkey = append([]byte{}, issuerVkey[:]...)
	}
	if era.HeaderFunc != nil {
		if err := era.HeaderFunc(block.Header(), ret); err != nil {
			return nil, fmt.Errorf(
				"%s block %d: %w",
				era.Name,
				ret.Height,
				err,
			)
		}
	}
	txs := block.Transactions()
	ret.Transactions = make([]nledger.Transaction, 0, len(txs))
	for idx, tx := range txs {
		tmpTx, err := NormalizeTransaction(era, idx, tx, logger)
		if err != nil {
			return nil, fmt.Errorf(
				"%s block %d: transaction %d: %w",
				era.Name,
				ret.Height,
				idx,
				err,
			)
		}
		ret.Transactions = append(ret.Transactions, tmpTx)
	}
	return ret, nil
}
