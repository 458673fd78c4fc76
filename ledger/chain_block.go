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
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	// NonceVrfHeader is prepended to a Praos VRF output to derive the nonce
	// contribution ('N')
	NonceVrfHeader byte = 0x4e
	// LeaderVrfHeader is prepended to a Praos VRF output to derive the leader
	// value ('L')
	LeaderVrfHeader byte = 0x4c
)

// ChainBlockFor builds the chain record of a block. prevEtaV is the hex
// evolving nonce of the previous block, or the Shelley genesis hash for the
// first block.
//
// TPraos headers carry separate nonce and leader VRF results which are used
// as is. Praos headers carry a single VRF result from which both values are
// derived by hashing with a one byte domain separator.
func ChainBlockFor(block *Block, prevEtaV string) (ChainBlock, error) {
	ret := ChainBlock{
		Height:               block.Height,
		Slot:                 block.Slot,
		Hash:                 hex.EncodeToString(block.Hash),
		PrevHash:             hex.EncodeToString(block.PrevHash),
		NodeVkey:             hex.EncodeToString(block.IssuerVkey),
		NodeVrfVkey:          hex.EncodeToString(block.VrfKey),
		BlockSize:            block.BodySize,
		BlockBodyHash:        hex.EncodeToString(block.BodyHash),
		PoolOpcert:           hex.EncodeToString(block.OpCert.HotVkey),
		SequenceNumber:       block.OpCert.SequenceNumber,
		KesPeriod:            block.OpCert.KesPeriod,
		SigmaSignature:       hex.EncodeToString(block.OpCert.Signature),
		ProtocolMajorVersion: block.ProtocolVersion.Major,
		ProtocolMinorVersion: block.ProtocolVersion.Minor,
	}
	if len(block.BlockVrf.Output) > 0 {
		ret.BlockVrf = hex.EncodeToString(block.BlockVrf.Output)
		ret.BlockVrfProof = hex.EncodeToString(block.BlockVrf.Proof)
		ret.EtaVrf0 = hex.EncodeToString(
			prefixedHash(NonceVrfHeader, block.BlockVrf.Output),
		)
		ret.LeaderVrf0 = hex.EncodeToString(
			prefixedHash(LeaderVrfHeader, block.BlockVrf.Output),
		)
	} else {
		ret.EtaVrf0 = hex.EncodeToString(block.NonceVrf.Output)
		ret.LeaderVrf0 = hex.EncodeToString(block.LeaderVrf.Output)
	}
	ret.EtaVrf1 = hex.EncodeToString(block.NonceVrf.Proof)
	ret.LeaderVrf1 = hex.EncodeToString(block.LeaderVrf.Proof)
	if len(block.IssuerVkey) > 0 {
		ret.PoolID = PoolIDFromVkey(block.IssuerVkey)
	}
	// Byron blocks do not contribute to the evolving nonce
	if block.Era == EraByron {
		ret.EtaV = prevEtaV
		return ret, nil
	}
	etaV, err := EvolveEtaV(prevEtaV, ret.EtaVrf0)
	if err != nil {
		return ChainBlock{}, err
	}
	ret.EtaV = etaV
	return ret, nil
}

// PoolIDFromVkey returns the hex pool id of an issuer verification key
func PoolIDFromVkey(vkey []byte) string {
	h, err := blake2b.New(28, nil)
	if err != nil {
		// Only fails for invalid sizes or keys
		panic(err)
	}
	h.Write(vkey)
	return hex.EncodeToString(h.Sum(nil))
}

// EvolveEtaV returns blake2b256(prevEtaV || blake2b256(etaVrf0)) as hex
func EvolveEtaV(prevEtaV string, etaVrf0 string) (string, error) {
	prev, err := hex.DecodeString(prevEtaV)
	if err != nil {
		return "", fmt.Errorf("decode previous etaV: %w", err)
	}
	vrf, err := hex.DecodeString(etaVrf0)
	if err != nil {
		return "", fmt.Errorf("decode etaVrf0: %w", err)
	}
	eta := blake2b.Sum256(vrf)
	combined := make([]byte, 0, len(prev)+len(eta))
	combined = append(combined, prev...)
	combined = append(combined, eta[:]...)
	etaV := blake2b.Sum256(combined)
	return hex.EncodeToString(etaV[:]), nil
}

func prefixedHash(prefix byte, data []byte) []byte {
	tmp := make([]byte, 0, len(data)+1)
	tmp = append(tmp, prefix)
	tmp = append(tmp, data...)
	ret := blake2b.Sum256(tmp)
	return ret[:]
}
