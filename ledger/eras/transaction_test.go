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
	"bytes"
	"fmt"
	"log/slog"
	"math/big"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	mockledger "github.com/blinklabs-io/ouroboros-mock/ledger"
	"github.com/blinklabs-io/plutigo/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utxorpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"

	nledger "github.com/blinklabs-io/numbat/ledger"
)

// testInput implements lcommon.TransactionInput for testing.
type testInput struct {
	txId  lcommon.Blake2b256
	index uint32
}

func (i testInput) Id() lcommon.Blake2b256             { return i.txId }
func (i testInput) Index() uint32                      { return i.index }
func (i testInput) String() string                     { return fmt.Sprintf("%s#%d", i.txId, i.index) }
func (i testInput) MarshalJSON() ([]byte, error)       { return []byte(`"` + i.String() + `"`), nil }
func (i testInput) Utxorpc() (*utxorpc.TxInput, error) { return &utxorpc.TxInput{}, nil }
func (i testInput) ToPlutusData() data.PlutusData      { return data.NewConstr(0) }

// testOutput implements lcommon.TransactionOutput for testing.
type testOutput struct {
	address   lcommon.Address
	amount    *big.Int
	datumHash *lcommon.Blake2b256
}

func (o testOutput) Address() lcommon.Address                                  { return o.address }
func (o testOutput) Amount() *big.Int                                          { return o.amount }
func (o testOutput) Assets() *lcommon.MultiAsset[lcommon.MultiAssetTypeOutput] { return nil }
func (o testOutput) Datum() *lcommon.Datum                                     { return nil }
func (o testOutput) DatumHash() *lcommon.Blake2b256                            { return o.datumHash }
func (o testOutput) Cbor() []byte                                              { return []byte{0x80} }
func (o testOutput) Utxorpc() (*utxorpc.TxOutput, error)                       { return &utxorpc.TxOutput{}, nil }
func (o testOutput) ScriptRef() lcommon.Script                                 { return nil }
func (o testOutput) ToPlutusData() data.PlutusData                             { return data.NewConstr(0) }
func (o testOutput) String() string                                            { return "testOutput" }

// testTx implements TransactionSource for testing.
type testTx struct {
	hash         lcommon.Blake2b256
	valid        bool
	inputs       []lcommon.TransactionInput
	collateral   []lcommon.TransactionInput
	outputs      []lcommon.TransactionOutput
	certificates []lcommon.Certificate
	metadata     lcommon.TransactionMetadatum
}

func (t *testTx) Hash() lcommon.Blake2b256                                   { return t.hash }
func (t *testTx) IsValid() bool                                              { return t.valid }
func (t *testTx) Inputs() []lcommon.TransactionInput                         { return t.inputs }
func (t *testTx) Collateral() []lcommon.TransactionInput                     { return t.collateral }
func (t *testTx) Outputs() []lcommon.TransactionOutput                       { return t.outputs }
func (t *testTx) Certificates() []lcommon.Certificate                        { return t.certificates }
func (t *testTx) AssetMint() *lcommon.MultiAsset[lcommon.MultiAssetTypeMint] { return nil }
func (t *testTx) Metadata() lcommon.TransactionMetadatum                     { return t.metadata }
func (t *testTx) Cbor() []byte                                               { return []byte{0x84} }

func newTestInput(hashByte byte, index uint32) testInput {
	var hash lcommon.Blake2b256
	hash[0] = hashByte
	return testInput{txId: hash, index: index}
}

func newTestOutput(t *testing.T, amount uint64) testOutput {
	t.Helper()
	addr, err := lcommon.NewAddressFromParts(
		0x00, // base address, key hash payment and stake parts
		0x01, // mainnet
		bytes.Repeat([]byte{0x11}, 28),
		bytes.Repeat([]byte{0x22}, 28),
	)
	require.NoError(t, err)
	return testOutput{
		address: addr,
		amount:  new(big.Int).SetUint64(amount),
	}
}

func TestNormalizeTransactionOutputs(t *testing.T) {
	datumHash := lcommon.NewBlake2b256(bytes.Repeat([]byte{0xab}, 32))
	output := newTestOutput(t, 2_500_000)
	output.datumHash = &datumHash
	tx := &testTx{
		hash:  lcommon.NewBlake2b256(bytes.Repeat([]byte{0x01}, 32)),
		valid: true,
		inputs: []lcommon.TransactionInput{
			newTestInput(0x02, 3),
		},
		outputs: []lcommon.TransactionOutput{output},
	}
	ret, err := NormalizeTransaction(&BabbageEraDesc, 4, tx, nil)
	require.NoError(t, err)
	assert.Equal(t, tx.hash.String(), ret.ID)
	assert.Equal(t, 4, ret.Index)
	assert.True(t, ret.Valid)
	assert.Equal(t, nledger.InputSourceInputs, ret.InputSource)
	require.Len(t, ret.Inputs, 1)
	assert.Equal(t, uint32(3), ret.Inputs[0].Index)
	assert.Equal(t, newTestInput(0x02, 3).txId.String(), ret.Inputs[0].TxID)
	require.Len(t, ret.Outputs, 1)
	out := ret.Outputs[0]
	assert.Equal(t, output.address.String(), out.Address)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, 28), out.PaymentCred)
	assert.Equal(t, bytes.Repeat([]byte{0x22}, 28), out.StakeCred)
	assert.Equal(t, 0, out.Lovelace.Cmp(big.NewInt(2_500_000)))
	assert.Equal(t, datumHash.Bytes(), out.DatumHash)
	assert.Nil(t, out.Datum)
	assert.Nil(t, out.ScriptRef)
	assert.Empty(t, out.Assets)
	assert.Nil(t, ret.Metadata)
}

func TestNormalizeTransactionInputSource(t *testing.T) {
	tx := &testTx{
		hash:       lcommon.NewBlake2b256(bytes.Repeat([]byte{0x03}, 32)),
		valid:      false,
		inputs:     []lcommon.TransactionInput{newTestInput(0x04, 0)},
		collateral: []lcommon.TransactionInput{newTestInput(0x05, 1)},
	}
	tests := []struct {
		era            *EraDesc
		expectedSource nledger.InputSource
		hasCollateral  bool
	}{
		{&MaryEraDesc, nledger.InputSourceInputs, false},
		{&AlonzoEraDesc, nledger.InputSourceCollaterals, true},
		{&BabbageEraDesc, nledger.InputSourceCollaterals, true},
		{&ConwayEraDesc, nledger.InputSourceCollaterals, true},
	}
	for _, tc := range tests {
		t.Run(tc.era.Name, func(t *testing.T) {
			ret, err := NormalizeTransaction(tc.era, 0, tx, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedSource, ret.InputSource)
			if tc.hasCollateral {
				require.Len(t, ret.Collateral, 1)
				assert.Equal(t, uint32(1), ret.Collateral[0].Index)
			} else {
				assert.Empty(t, ret.Collateral)
			}
		})
	}
	// A valid transaction always consumes its regular inputs
	tx.valid = true
	ret, err := NormalizeTransaction(&ConwayEraDesc, 0, tx, nil)
	require.NoError(t, err)
	assert.Equal(t, nledger.InputSourceInputs, ret.InputSource)
}

func TestNormalizeTransactionCertificates(t *testing.T) {
	stakeCred := lcommon.Credential{
		CredType: lcommon.CredentialTypeAddrKeyHash,
		Credential: lcommon.CredentialHash(
			lcommon.NewBlake2b224(bytes.Repeat([]byte{0x31}, 28)),
		),
	}
	poolKeyHash := lcommon.PoolKeyHash(
		lcommon.NewBlake2b224(bytes.Repeat([]byte{0x41}, 28)),
	)
	tx := &testTx{
		hash:  lcommon.NewBlake2b256(bytes.Repeat([]byte{0x06}, 32)),
		valid: true,
		certificates: []lcommon.Certificate{
			&lcommon.StakeRegistrationCertificate{
				CertType:        uint(lcommon.CertificateTypeStakeRegistration),
				StakeCredential: stakeCred,
			},
			&lcommon.StakeDelegationCertificate{
				CertType:        uint(lcommon.CertificateTypeStakeDelegation),
				StakeCredential: &stakeCred,
				PoolKeyHash:     poolKeyHash,
			},
			&lcommon.StakeDeregistrationCertificate{},
		},
	}
	ret, err := NormalizeTransaction(&ShelleyEraDesc, 0, tx, nil)
	require.NoError(t, err)
	require.Len(t, ret.Certificates, 3)
	assert.Equal(t, nledger.CertStakeRegistration, ret.Certificates[0].Kind)
	assert.Equal(
		t,
		bytes.Repeat([]byte{0x31}, 28),
		ret.Certificates[0].StakeCredential,
	)
	assert.Equal(t, nledger.CertStakeDelegation, ret.Certificates[1].Kind)
	assert.Equal(
		t,
		bytes.Repeat([]byte{0x41}, 28),
		ret.Certificates[1].PoolKeyHash,
	)
	assert.Equal(t, nledger.CertOther, ret.Certificates[2].Kind)
}

func TestNormalizeTransactionMalformedMetadata(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	tx := &testTx{
		hash:  lcommon.NewBlake2b256(bytes.Repeat([]byte{0x07}, 32)),
		valid: true,
		metadata: lcommon.MetaMap{
			Pairs: []lcommon.MetaPair{
				{
					Key:   lcommon.MetaInt{Value: big.NewInt(721)},
					Value: lcommon.MetaList{Items: []lcommon.TransactionMetadatum{nil}},
				},
				{
					Key:   lcommon.MetaInt{Value: big.NewInt(674)},
					Value: lcommon.MetaText{Value: "hello"},
				},
			},
		},
	}
	ret, err := NormalizeTransaction(&MaryEraDesc, 0, tx, logger)
	require.NoError(t, err)
	require.Len(t, ret.Metadata, 1)
	assert.Equal(t, nledger.MetaText("hello"), ret.Metadata[674])
	assert.NotContains(t, ret.Metadata, uint64(721))
	assert.Contains(t, logBuf.String(), "skipping malformed transaction metadata")
	assert.Contains(t, logBuf.String(), "label 721")

	// Eras without metadata never look at it
	ret, err = NormalizeTransaction(&AllegraEraDesc, 0, tx, logger)
	require.NoError(t, err)
	assert.Nil(t, ret.Metadata)
}

func TestNormalizeMockTransaction(t *testing.T) {
	tx := mockledger.NewTransactionBuilder()
	tx.WithId([]byte("mock_tx_hash_1234567890123456789012"))
	ret, err := NormalizeTransaction(&ShelleyEraDesc, 2, tx, nil)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash().String(), ret.ID)
	assert.Equal(t, 2, ret.Index)
	assert.Len(t, ret.Outputs, len(tx.Outputs()))
	assert.Nil(t, ret.Metadata)
}

func TestToBigInt(t *testing.T) {
	assert.Equal(t, 0, toBigInt(int64(-5)).Cmp(big.NewInt(-5)))
	assert.Equal(t, 0, toBigInt(uint64(7)).Cmp(big.NewInt(7)))
	src := big.NewInt(9)
	dst := toBigInt(src)
	dst.SetInt64(1)
	assert.Equal(t, int64(9), src.Int64())
	assert.Equal(t, 0, toBigInt((*big.Int)(nil)).Sign())
}
