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

package commit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"

	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/database/plugin/metadata"
	"github.com/blinklabs-io/numbat/ledger"
)

const (
	// CursorPruneInterval is the height interval between cursor prunes
	CursorPruneInterval = 10000
	// CursorKeep is the number of cursor rows kept by a prune
	CursorKeep = 1000
)

// AddressUtxo is an output paying to a monitored address
type AddressUtxo struct {
	TxID      string         `cbor:"0,keyasint"`
	Lovelace  *big.Int       `cbor:"2,keyasint"`
	DatumHash string         `cbor:"3,keyasint,omitempty"`
	Datum     string         `cbor:"4,keyasint,omitempty"`
	Assets    []AddressAsset `cbor:"5,keyasint,omitempty"`
	Index     uint32         `cbor:"1,keyasint"`
}

type AddressAsset struct {
	Policy string   `cbor:"0,keyasint"`
	Name   string   `cbor:"1,keyasint"`
	Amount *big.Int `cbor:"2,keyasint"`
}

// AddressTxRecord is the logged form of a transaction touching a monitored
// address
type AddressTxRecord struct {
	TxID    string        `cbor:"0,keyasint"`
	Spent   []AddressUtxo `cbor:"1,keyasint"`
	Created []AddressUtxo `cbor:"2,keyasint"`
}

// DecodeAddressTx decodes a logged transaction record
func DecodeAddressTx(data []byte) (AddressTxRecord, error) {
	var ret AddressTxRecord
	if err := cbor.Unmarshal(data, &ret); err != nil {
		return AddressTxRecord{}, fmt.Errorf("decode address tx: %w", err)
	}
	return ret, nil
}

// AddressProcessor writes the transaction log and cursor of a monitored
// address
type AddressProcessor struct {
	extractor *ledger.Extractor
	address   string
	feedMode  atomic.Bool
}

func NewAddressProcessor(
	extractor *ledger.Extractor,
	address string,
) (*AddressProcessor, error) {
	if extractor == nil {
		return nil, errors.New("commit: extractor is required")
	}
	if address == "" {
		return nil, errors.New("commit: address is required")
	}
	return &AddressProcessor{
		extractor: extractor,
		address:   address,
	}, nil
}

func (p *AddressProcessor) Address() string {
	return p.address
}

// SetFeedMode switches cursor writes between the per-block history used while
// syncing from the network and the single at-tip marker used while
// following the committed block feed
func (p *AddressProcessor) SetFeedMode(feed bool) {
	p.feedMode.Store(feed)
}

func (p *AddressProcessor) FeedMode() bool {
	return p.feedMode.Load()
}

func (p *AddressProcessor) Rollback(txn *database.Txn, height uint64) error {
	return txn.DB().Metadata().RollbackAddress(p.address, height, txn.Metadata())
}

func (p *AddressProcessor) Apply(
	ctx context.Context,
	txn *database.Txn,
	block *ledger.Block,
) error {
	store := txn.DB().Metadata()
	mtxn := txn.Metadata()
	created := make(map[string][]AddressUtxo)
	createdByRef := make(map[string]AddressUtxo)
	for _, utxo := range p.extractor.CreatedUtxos(block) {
		if utxo.Address != p.address {
			continue
		}
		tmpUtxo := addressUtxoFromCreated(utxo)
		created[utxo.TxID] = append(created[utxo.TxID], tmpUtxo)
		createdByRef[utxoRef(utxo.TxID, utxo.Index)] = tmpUtxo
	}
	spent := make(map[string][]AddressUtxo)
	for _, input := range p.extractor.SpentUtxos(block) {
		if tmpUtxo, ok := createdByRef[utxoRef(input.TxID, input.Index)]; ok {
			spent[input.TxSpent] = append(spent[input.TxSpent], tmpUtxo)
			continue
		}
		utxo, err := store.GetUtxo(input.TxID, input.Index, mtxn)
		if err != nil {
			return err
		}
		if utxo == nil || utxo.Address != p.address {
			continue
		}
		tmpUtxo := AddressUtxo{
			TxID:      utxo.TxId,
			Index:     utxo.TxIx,
			Lovelace:  new(big.Int).Set(utxo.Lovelace.Int),
			DatumHash: utxo.DatumHash,
			Datum:     utxo.Datum,
		}
		for _, asset := range utxo.Assets {
			tmpUtxo.Assets = append(
				tmpUtxo.Assets,
				AddressAsset{
					Policy: asset.Policy,
					Name:   asset.Name,
					Amount: new(big.Int).Set(asset.Amount.Int),
				},
			)
		}
		spent[input.TxSpent] = append(spent[input.TxSpent], tmpUtxo)
	}
	var txs []metadata.AddressTx
	for _, tx := range block.Transactions {
		if len(spent[tx.ID]) == 0 && len(created[tx.ID]) == 0 {
			continue
		}
		record := AddressTxRecord{
			TxID:    tx.ID,
			Spent:   spent[tx.ID],
			Created: created[tx.ID],
		}
		data, err := cbor.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode address tx %s: %w", tx.ID, err)
		}
		txs = append(
			txs,
			metadata.AddressTx{
				TxID:   tx.ID,
				Cbor:   data,
				Height: block.Height,
				Slot:   block.Slot,
			},
		)
	}
	return store.CreateAddressTxs(p.address, txs, mtxn)
}

func (p *AddressProcessor) Finish(
	txn *database.Txn,
	last *ledger.Block,
	atTip bool,
) error {
	store := txn.DB().Metadata()
	mtxn := txn.Metadata()
	hash := hex.EncodeToString(last.Hash)
	if p.feedMode.Load() {
		return store.MarkAddressAtTip(p.address, last.Height, hash, mtxn)
	}
	if err := store.AddAddressCursor(p.address, last.Height, last.Slot, hash, mtxn); err != nil {
		return err
	}
	if last.Height%CursorPruneInterval == 0 {
		return store.PruneAddressCursor(p.address, CursorKeep, mtxn)
	}
	return nil
}

func addressUtxoFromCreated(utxo ledger.CreatedUtxo) AddressUtxo {
	ret := AddressUtxo{
		TxID:      utxo.TxID,
		Index:     utxo.Index,
		Lovelace:  utxo.Lovelace,
		DatumHash: utxo.DatumHash,
		Datum:     utxo.Datum,
	}
	for _, asset := range utxo.NativeAssets {
		ret.Assets = append(
			ret.Assets,
			AddressAsset{
				Policy: asset.Policy,
				Name:   asset.Name,
				Amount: asset.Amount,
			},
		)
	}
	return ret
}

func utxoRef(txID string, idx uint32) string {
	return fmt.Sprintf("%s#%d", txID, idx)
}
