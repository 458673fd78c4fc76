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
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

var testGenesisHash = hex.EncodeToString(bytes.Repeat([]byte{0x1a}, 32))

func TestChainBlockTPraos(t *testing.T) {
	block := &Block{
		Era:        EraAlonzo,
		Height:     10,
		Slot:       200,
		Hash:       []byte{0x01},
		PrevHash:   []byte{0x02},
		IssuerVkey: bytes.Repeat([]byte{0x03}, 32),
		VrfKey:     []byte{0x04},
		NonceVrf:   VrfResult{Output: []byte{0x05}, Proof: []byte{0x06}},
		LeaderVrf:  VrfResult{Output: []byte{0x07}, Proof: []byte{0x08}},
		OpCert: OpCert{
			HotVkey:        []byte{0x09},
			SequenceNumber: 3,
			KesPeriod:      4,
			Signature:      []byte{0x0a},
		},
		ProtocolVersion: ProtocolVersion{Major: 6},
		BodySize:        512,
	}
	cb, err := ChainBlockFor(block, testGenesisHash)
	require.NoError(t, err)
	assert.Equal(t, "05", cb.EtaVrf0)
	assert.Equal(t, "06", cb.EtaVrf1)
	assert.Equal(t, "07", cb.LeaderVrf0)
	assert.Equal(t, "08", cb.LeaderVrf1)
	assert.Empty(t, cb.BlockVrf)
	assert.Empty(t, cb.BlockVrfProof)
	assert.Equal(t, "09", cb.PoolOpcert)
	assert.Equal(t, uint64(3), cb.SequenceNumber)
	assert.Equal(t, uint64(4), cb.KesPeriod)
	assert.Equal(t, "0a", cb.SigmaSignature)
	assert.Equal(t, uint64(512), cb.BlockSize)

	h, err := blake2b.New(28, nil)
	require.NoError(t, err)
	h.Write(block.IssuerVkey)
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), cb.PoolID)

	prev, err := hex.DecodeString(testGenesisHash)
	require.NoError(t, err)
	eta := blake2b.Sum256([]byte{0x05})
	expected := blake2b.Sum256(append(prev, eta[:]...))
	assert.Equal(t, hex.EncodeToString(expected[:]), cb.EtaV)
}

func TestChainBlockPraos(t *testing.T) {
	output := bytes.Repeat([]byte{0x33}, 64)
	block := &Block{
		Era:        EraBabbage,
		Height:     11,
		IssuerVkey: bytes.Repeat([]byte{0x03}, 32),
		BlockVrf:   VrfResult{Output: output, Proof: []byte{0x44}},
	}
	cb, err := ChainBlockFor(block, testGenesisHash)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(output), cb.BlockVrf)
	assert.Equal(t, "44", cb.BlockVrfProof)
	nonce := blake2b.Sum256(append([]byte{'N'}, output...))
	leader := blake2b.Sum256(append([]byte{'L'}, output...))
	assert.Equal(t, hex.EncodeToString(nonce[:]), cb.EtaVrf0)
	assert.Equal(t, hex.EncodeToString(leader[:]), cb.LeaderVrf0)
	assert.Empty(t, cb.EtaVrf1)
	assert.Empty(t, cb.LeaderVrf1)

	// etaV chains from block to block
	next, err := ChainBlockFor(&Block{Era: EraBabbage, Height: 12, BlockVrf: block.BlockVrf}, cb.EtaV)
	require.NoError(t, err)
	expected, err := EvolveEtaV(cb.EtaV, next.EtaVrf0)
	require.NoError(t, err)
	assert.Equal(t, expected, next.EtaV)
	assert.NotEqual(t, cb.EtaV, next.EtaV)
	assert.Empty(t, next.PoolID)
}

func TestChainBlockBadPrevEtaV(t *testing.T) {
	_, err := ChainBlockFor(&Block{Era: EraShelley}, "zz")
	require.Error(t, err)
}

func TestChainBlockByronKeepsEtaV(t *testing.T) {
	cb, err := ChainBlockFor(&Block{Era: EraByron, Height: 1}, testGenesisHash)
	require.NoError(t, err)
	assert.Equal(t, testGenesisHash, cb.EtaV)
	assert.Empty(t, cb.PoolID)
}
