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

package eras

import (
	"encoding/hex"
	"log/slog"
	"math/big"
	"strings"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

// TransactionSource is the part of a ledger transaction used to build the
// canonical transaction
type TransactionSource interface {
	Hash() lcommon.Blake2b256
	IsValid() bool
	Inputs() []lcommon.TransactionInput
	Collateral() []lcommon.TransactionInput
	Outputs() []lcommon.TransactionOutput
	Certificates() []lcommon.Certificate
	AssetMint() *lcommon.MultiAsset[lcommon.MultiAssetTypeMint]
	Metadata() lcommon.TransactionMetadatum
	Cbor() []byte
}

var zeroBlake2b224 lcommon.Blake2b224

// NormalizeTransaction converts a transaction into the canonical model.
// Malformed metadata labels are logged and left out.
func NormalizeTransaction(
	era *EraDesc,
	idx int,
	tx TransactionSource,
	logger *slog.Logger,
) (nledger.Transaction, error) {
	ret := nledger.Transaction{
		ID:          tx.Hash().String(),
		Index:       idx,
		Valid:       tx.IsValid(),
		InputSource: nledger.InputSourceInputs,
		Inputs:      convertInputs(tx.Inputs()),
		Cbor:        tx.Cbor(),
	}
	if era.CollateralSupported {
		ret.Collateral = convertInputs(tx.Collateral())
		if !ret.Valid {
			ret.InputSource = nledger.InputSourceCollaterals
		}
	}
	outputs := tx.Outputs()
	ret.Outputs = make([]nledger.Output, 0, len(outputs))
	for _, output := range outputs {
		tmpOutput, err := convertOutput(output)
		if err != nil {
			return nledger.Transaction{}, err
		}
		ret.Outputs = append(ret.Outputs, tmpOutput)
	}
	for _, cert := range tx.Certificates() {
		ret.Certificates = append(ret.Certificates, convertCertificate(cert))
	}
	if mint := tx.AssetMint(); mint != nil {
		for _, policy := range mint.Policies() {
			for _, name := range mint.Assets(policy) {
				ret.Mint = append(
					ret.Mint,
					nledger.AssetQuantity{
						Unit: nledger.AssetUnit(
							policy.String(),
							hex.EncodeToString(name),
						),
						Quantity: toBigInt(mint.Asset(policy, name)),
					},
				)
			}
		}
	}
	if era.MetadataSupported {
		if md := tx.Metadata(); md != nil {
			labels, err := nledger.LabelsFromLedger(md)
			if err != nil && logger != nil {
				logger.Warn(
					"skipping malformed transaction metadata",
					"component", "ledger",
					"tx", ret.ID,
					"error", err,
				)
			}
			if len(labels) > 0 {
				ret.Metadata = labels
			}
		}
	}
	return ret, nil
}

func convertInputs(inputs []lcommon.TransactionInput) []nledger.Input {
	if len(inputs) == 0 {
		return nil
	}
	ret := make([]nledger.Input, 0, len(inputs))
	for _, input := range inputs {
		ret = append(
			ret,
			nledger.Input{
				TxID:  input.Id().String(),
				Index: input.Index(),
			},
		)
	}
	return ret
}

func convertOutput(output lcommon.TransactionOutput) (nledger.Output, error) {
	addr := output.Address()
	ret := nledger.Output{
		Address:  addr.String(),
		Lovelace: toBigInt(output.Amount()),
		Cbor:     output.Cbor(),
	}
	// Credentials only exist for Shelley addresses
	if strings.HasPrefix(ret.Address, "addr") {
		if pkh := addr.PaymentKeyHash(); pkh != zeroBlake2b224 {
			ret.PaymentCred = pkh.Bytes()
		}
		if skh := addr.StakeKeyHash(); skh != zeroBlake2b224 {
			ret.StakeCred = skh.Bytes()
		}
	}
	if dh := output.DatumHash(); dh != nil {
		ret.DatumHash = dh.Bytes()
	}
	if d := output.Datum(); d != nil {
		ret.Datum = d.Cbor()
	}
	if sr := output.ScriptRef(); sr != nil {
		ret.ScriptRef = sr.RawScriptBytes()
	}
	if assets := output.Assets(); assets != nil {
		for _, policy := range assets.Policies() {
			for _, name := range assets.Assets(policy) {
				ret.Assets = append(
					ret.Assets,
					nledger.AssetQuantity{
						Unit: nledger.AssetUnit(
							policy.String(),
							hex.EncodeToString(name),
						),
						Quantity: toBigInt(assets.Asset(policy, name)),
					},
				)
			}
		}
	}
	return ret, nil
}

func convertCertificate(cert lcommon.Certificate) nledger.Certificate {
	switch c := cert.(type) {
	case *lcommon.StakeRegistrationCertificate:
		return nledger.Certificate{
			Kind:            nledger.CertStakeRegistration,
			StakeCredential: append([]byte(nil), c.StakeCredential.Credential[:]...),
		}
	case *lcommon.RegistrationCertificate:
		return nledger.Certificate{
			Kind:            nledger.CertStakeRegistration,
			StakeCredential: append([]byte(nil), c.StakeCredential.Credential[:]...),
		}
	case *lcommon.StakeDelegationCertificate:
		return nledger.Certificate{
			Kind:            nledger.CertStakeDelegation,
			StakeCredential: append([]byte(nil), c.StakeCredential.Credential[:]...),
			PoolKeyHash:     append([]byte(nil), c.PoolKeyHash[:]...),
		}
	case *lcommon.StakeVoteDelegationCertificate:
		return nledger.Certificate{
			Kind:            nledger.CertStakeDelegation,
			StakeCredential: append([]byte(nil), c.StakeCredential.Credential[:]...),
			PoolKeyHash:     append([]byte(nil), c.PoolKeyHash[:]...),
		}
	case *lcommon.StakeRegistrationDelegationCertificate:
		return nledger.Certificate{
			Kind:            nledger.CertStakeRegistrationDelegation,
			StakeCredential: append([]byte(nil), c.StakeCredential.Credential[:]...),
			PoolKeyHash:     append([]byte(nil), c.PoolKeyHash[:]...),
		}
	case *lcommon.StakeVoteRegistrationDelegationCertificate:
		return nledger.Certificate{
			Kind:            nledger.CertStakeRegistrationDelegation,
			StakeCredential: append([]byte(nil), c.StakeCredential.Credential[:]...),
			PoolKeyHash:     append([]byte(nil), c.PoolKeyHash[:]...),
		}
	default:
		return nledger.Certificate{Kind: nledger.CertOther}
	}
}

// toBigInt copies an asset or coin amount, whatever integer type the ledger
// uses for it
func toBigInt(v any) *big.Int {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(x)
	case int64:
		return big.NewInt(x)
	case uint64:
		return new(big.Int).SetUint64(x)
	default:
		return new(big.Int)
	}
}
