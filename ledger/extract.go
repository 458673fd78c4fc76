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

package ledger

import (
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"

	"github.com/blinklabs-io/numbat/address"
	"golang.org/x/crypto/blake2b"
)

// Extractor derives ledger facts from canonical blocks. Malformed items are
// skipped and logged, they never fail a block.
type Extractor struct {
	logger  *slog.Logger
	mainnet bool
}

func NewExtractor(mainnet bool, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Extractor{
		logger:  logger,
		mainnet: mainnet,
	}
}

func (e *Extractor) Mainnet() bool {
	return e.mainnet
}

// stakeAddressOrEmpty returns the stake address of a base receive address,
// or an empty string for anything else
func (e *Extractor) stakeAddressOrEmpty(addr string) string {
	if !address.IsReceiveAddress(addr) {
		return ""
	}
	stakeAddr, err := address.ExtractStakeAddress(addr, e.mainnet)
	if err != nil {
		e.logger.Debug(
			"failed to extract stake address",
			"component", "ledger",
			"address", addr,
			"error", err,
		)
		return ""
	}
	return stakeAddr
}

// CreatedUtxos returns one entry per transaction output in the block
func (e *Extractor) CreatedUtxos(block *Block) []CreatedUtxo {
	var ret []CreatedUtxo
	for _, tx := range block.Transactions {
		for idx, output := range tx.Outputs {
			ret = append(ret, e.createdUtxo(tx.ID, uint32(idx), output)) // #nosec G115
		}
	}
	return ret
}

func (e *Extractor) createdUtxo(txID string, idx uint32, output Output) CreatedUtxo {
	utxo := CreatedUtxo{
		Address:      output.Address,
		AddressType:  address.AddressType(output.Address),
		StakeAddress: e.stakeAddressOrEmpty(output.Address),
		TxID:         txID,
		Index:        idx,
		Lovelace:     output.Lovelace,
		Cbor:         output.Cbor,
	}
	if utxo.Lovelace == nil {
		utxo.Lovelace = new(big.Int)
	}
	if len(output.DatumHash) > 0 {
		utxo.DatumHash = hex.EncodeToString(output.DatumHash)
	}
	if len(output.Datum) > 0 {
		utxo.Datum = hex.EncodeToString(output.Datum)
		if utxo.DatumHash == "" {
			datumHash := blake2b.Sum256(output.Datum)
			utxo.DatumHash = hex.EncodeToString(datumHash[:])
		}
	}
	if len(output.ScriptRef) > 0 {
		utxo.ScriptRef = hex.EncodeToString(output.ScriptRef)
	}
	if len(output.PaymentCred) > 0 {
		utxo.PaymentCred = hex.EncodeToString(output.PaymentCred)
	}
	if len(output.StakeCred) > 0 {
		utxo.StakeCred = hex.EncodeToString(output.StakeCred)
	}
	for _, asset := range output.Assets {
		policy, name := SplitAssetUnit(asset.Unit)
		utxo.NativeAssets = append(
			utxo.NativeAssets,
			NativeAssetAmount{
				Policy: policy,
				Name:   name,
				Amount: asset.Quantity,
			},
		)
	}
	return utxo
}

// SpentUtxos returns the outputs consumed by the block. A transaction that
// failed script validation consumes its collateral instead of its inputs in
// eras that have collateral.
func (e *Extractor) SpentUtxos(block *Block) []SpentUtxo {
	var ret []SpentUtxo
	for _, tx := range block.Transactions {
		for _, input := range spentInputs(block.Era, tx) {
			ret = append(
				ret,
				SpentUtxo{
					TxSpent: tx.ID,
					TxID:    input.TxID,
					Index:   input.Index,
				},
			)
		}
	}
	return ret
}

func spentInputs(era Era, tx Transaction) []Input {
	if !era.HasCollateral() {
		return tx.Inputs
	}
	if tx.InputSource == InputSourceCollaterals {
		return tx.Collateral
	}
	return tx.Inputs
}

// StakeRegistrations returns the stake key registrations in the block
func (e *Extractor) StakeRegistrations(block *Block) []StakeRegistration {
	var ret []StakeRegistration
	for txIdx, tx := range block.Transactions {
		for certIdx, cert := range tx.Certificates {
			switch cert.Kind {
			case CertStakeRegistration, CertStakeRegistrationDelegation:
			default:
				continue
			}
			stakeAddr, err := address.StakeAddressFromCredential(
				cert.StakeCredential,
				e.mainnet,
			)
			if err != nil {
				e.logger.Debug(
					"skipping stake registration",
					"component", "ledger",
					"tx", tx.ID,
					"error", err,
				)
				continue
			}
			ret = append(
				ret,
				StakeRegistration{
					StakeAddress: stakeAddr,
					Slot:         block.Slot,
					TxIndex:      txIdx,
					CertIndex:    certIdx,
				},
			)
		}
	}
	return ret
}

// StakeDelegations returns the stake delegations in the block. The epoch
// cannot be derived from the block and is supplied by the caller.
func (e *Extractor) StakeDelegations(
	block *Block,
	epoch uint64,
) []StakeDelegation {
	var ret []StakeDelegation
	for _, tx := range block.Transactions {
		for _, cert := range tx.Certificates {
			switch cert.Kind {
			case CertStakeDelegation, CertStakeRegistrationDelegation:
			default:
				continue
			}
			stakeAddr, err := address.StakeAddressFromCredential(
				cert.StakeCredential,
				e.mainnet,
			)
			if err != nil {
				e.logger.Debug(
					"skipping stake delegation",
					"component", "ledger",
					"tx", tx.ID,
					"error", err,
				)
				continue
			}
			poolID, err := address.PoolIDBech32(cert.PoolKeyHash)
			if err != nil {
				e.logger.Debug(
					"skipping stake delegation",
					"component", "ledger",
					"tx", tx.ID,
					"error", err,
				)
				continue
			}
			ret = append(
				ret,
				StakeDelegation{
					Height:       block.Height,
					StakeAddress: stakeAddr,
					PoolID:       poolID,
					Epoch:        epoch,
				},
			)
		}
	}
	return ret
}

// RawTransactions returns the archive records for every transaction in the
// block
func (e *Extractor) RawTransactions(block *Block) []RawTransaction {
	ret := make([]RawTransaction, 0, len(block.Transactions))
	bodyHash := hex.EncodeToString(block.BodyHash)
	for _, tx := range block.Transactions {
		ret = append(
			ret,
			RawTransaction{
				Height:               block.Height,
				Slot:                 block.Slot,
				BlockSize:            block.Size,
				BlockBodyHash:        bodyHash,
				ProtocolVersionMajor: block.ProtocolVersion.Major,
				ProtocolVersionMinor: block.ProtocolVersion.Minor,
				TxID:                 tx.ID,
				Tx:                   tx.Cbor,
			},
		)
	}
	return ret
}

// PaymentStakeAddresses returns the distinct (receive address, stake address)
// pairs of the block's outputs
func (e *Extractor) PaymentStakeAddresses(block *Block) []PaymentStakeAddress {
	var ret []PaymentStakeAddress
	seen := make(map[string]struct{})
	for _, tx := range block.Transactions {
		for _, output := range tx.Outputs {
			if _, ok := seen[output.Address]; ok {
				continue
			}
			stakeAddr := e.stakeAddressOrEmpty(output.Address)
			if stakeAddr == "" {
				continue
			}
			seen[output.Address] = struct{}{}
			ret = append(
				ret,
				PaymentStakeAddress{
					ReceivingAddress: output.Address,
					StakeAddress:     stakeAddr,
				},
			)
		}
	}
	return ret
}

// TransactionDestAddresses returns the distinct output addresses of the block
func (e *Extractor) TransactionDestAddresses(block *Block) []string {
	var ret []string
	seen := make(map[string]struct{})
	for _, tx := range block.Transactions {
		for _, output := range tx.Outputs {
			if _, ok := seen[output.Address]; ok {
				continue
			}
			seen[output.Address] = struct{}{}
			ret = append(ret, output.Address)
		}
	}
	return ret
}

// NativeAssets returns the block's mints and burns aggregated per asset, in
// order of first appearance
func (e *Extractor) NativeAssets(block *Block) []NativeAsset {
	var ret []NativeAsset
	idx := make(map[string]int)
	for _, tx := range block.Transactions {
		for _, mint := range tx.Mint {
			if mint.Quantity == nil {
				continue
			}
			if pos, ok := idx[mint.Unit]; ok {
				ret[pos].Amount = new(big.Int).Add(ret[pos].Amount, mint.Quantity)
				continue
			}
			policy, name := SplitAssetUnit(mint.Unit)
			idx[mint.Unit] = len(ret)
			ret = append(
				ret,
				NativeAsset{
					Policy: policy,
					Name:   name,
					Amount: new(big.Int).Set(mint.Quantity),
					TxID:   tx.ID,
				},
			)
		}
	}
	return ret
}
