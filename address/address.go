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

// Package address converts between bech32 Cardano addresses and their raw
// credential payloads.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	// HrpStakeMainnet is the human readable prefix of mainnet reward addresses
	HrpStakeMainnet = "stake"
	// HrpStakeTestnet is the human readable prefix of testnet reward addresses
	HrpStakeTestnet = "stake_test"
	// HrpPool is the human readable prefix of pool ids
	HrpPool = "pool"

	// StakeHeaderMainnet is the header byte of a mainnet key-hash reward address
	StakeHeaderMainnet byte = 0xe1
	// StakeHeaderTestnet is the header byte of a testnet key-hash reward address
	StakeHeaderTestnet byte = 0xe0

	// LegacyAddressType is reported for Byron era (base58) addresses
	LegacyAddressType = "82"

	baseAddressLen = 57
	credentialLen  = 28
)

var (
	ErrMalformedAddress = errors.New("malformed address")

	receiveAddressRegex = regexp.MustCompile(`^addr(_test)?1[0-9a-z]{98}$`)
)

// Decode returns the human readable prefix and raw payload of a bech32
// address. Cardano addresses exceed the 90 character limit of BIP-173, so the
// length check is skipped.
func Decode(addr string) (string, []byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return "", nil, fmt.Errorf("decode bech32: %w", err)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("convert bits: %w", err)
	}
	return hrp, payload, nil
}

// Encode returns the bech32 encoding of payload using the given prefix
func Encode(hrp string, payload []byte) (string, error) {
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	ret, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", fmt.Errorf("encode bech32: %w", err)
	}
	return ret, nil
}

// ExtractStakeAddress returns the reward address embedded in a base payment
// address. The payload must be exactly 57 bytes: a header byte, the payment
// credential and the stake credential.
func ExtractStakeAddress(addr string, mainnet bool) (string, error) {
	_, payload, err := Decode(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}
	if len(payload) != baseAddressLen {
		return "", fmt.Errorf(
			"%w: payload length %d, expected %d",
			ErrMalformedAddress,
			len(payload),
			baseAddressLen,
		)
	}
	// The stake part starts one byte before the stake credential so that the
	// header can be written in place
	stake := make([]byte, baseAddressLen-credentialLen)
	copy(stake, payload[credentialLen:])
	return encodeStake(stake, mainnet)
}

// StakeAddressFromCredential returns the reward address for a 28 byte stake
// key hash
func StakeAddressFromCredential(cred []byte, mainnet bool) (string, error) {
	if len(cred) != credentialLen {
		return "", fmt.Errorf(
			"%w: credential length %d, expected %d",
			ErrMalformedAddress,
			len(cred),
			credentialLen,
		)
	}
	stake := make([]byte, 0, credentialLen+1)
	stake = append(stake, 0)
	stake = append(stake, cred...)
	return encodeStake(stake, mainnet)
}

func encodeStake(stake []byte, mainnet bool) (string, error) {
	hrp := HrpStakeTestnet
	stake[0] = StakeHeaderTestnet
	if mainnet {
		hrp = HrpStakeMainnet
		stake[0] = StakeHeaderMainnet
	}
	return Encode(hrp, stake)
}

// AddressType returns the header byte of a Shelley address as two hex
// digits, or the legacy tag for addresses that do not use bech32
func AddressType(addr string) string {
	if !strings.HasPrefix(addr, "addr") {
		return LegacyAddressType
	}
	_, payload, err := Decode(addr)
	if err != nil || len(payload) == 0 {
		return LegacyAddressType
	}
	return hex.EncodeToString(payload[:1])
}

// IsReceiveAddress reports whether addr is a base address carrying both a
// payment and a stake credential
func IsReceiveAddress(addr string) bool {
	return receiveAddressRegex.MatchString(addr)
}

// ToHexPoolID converts a bech32 pool id to hex. Anything that does not decode
// is returned unchanged.
func ToHexPoolID(poolID string) string {
	_, payload, err := Decode(poolID)
	if err != nil {
		return poolID
	}
	return hex.EncodeToString(payload)
}

// PoolIDBech32 returns the bech32 pool id for a pool key hash
func PoolIDBech32(hash []byte) (string, error) {
	return Encode(HrpPool, hash)
}
