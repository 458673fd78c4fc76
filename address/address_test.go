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

package address

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBasePayload(header byte) []byte {
	payload := make([]byte, 0, baseAddressLen)
	payload = append(payload, header)
	payload = append(payload, bytes.Repeat([]byte{0xaa}, credentialLen)...)
	for i := range credentialLen {
		payload = append(payload, byte(i+1))
	}
	return payload
}

func TestExtractStakeAddress(t *testing.T) {
	testDefs := []struct {
		name    string
		hrp     string
		header  byte
		mainnet bool
		stake   string
		sHeader byte
	}{
		{
			name:    "mainnet",
			hrp:     "addr",
			header:  0x01,
			mainnet: true,
			stake:   HrpStakeMainnet,
			sHeader: StakeHeaderMainnet,
		},
		{
			name:    "testnet",
			hrp:     "addr_test",
			header:  0x00,
			mainnet: false,
			stake:   HrpStakeTestnet,
			sHeader: StakeHeaderTestnet,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			payload := testBasePayload(testDef.header)
			addr, err := Encode(testDef.hrp, payload)
			require.NoError(t, err)
			stakeAddr, err := ExtractStakeAddress(addr, testDef.mainnet)
			require.NoError(t, err)
			hrp, stake, err := Decode(stakeAddr)
			require.NoError(t, err)
			assert.Equal(t, testDef.stake, hrp)
			require.Len(t, stake, 29)
			assert.Equal(t, testDef.sHeader, stake[0])
			assert.Equal(t, payload[29:], stake[1:])
		})
	}
}

func TestExtractStakeAddressMalformed(t *testing.T) {
	// Enterprise address: header + payment credential only
	payload := testBasePayload(0x61)[:29]
	addr, err := Encode("addr", payload)
	require.NoError(t, err)
	_, err = ExtractStakeAddress(addr, true)
	require.ErrorIs(t, err, ErrMalformedAddress)

	_, err = ExtractStakeAddress("not an address", true)
	require.ErrorIs(t, err, ErrMalformedAddress)
}

func TestStakeAddressFromCredential(t *testing.T) {
	payload := testBasePayload(0x01)
	addr, err := Encode("addr", payload)
	require.NoError(t, err)
	expected, err := ExtractStakeAddress(addr, true)
	require.NoError(t, err)
	stakeAddr, err := StakeAddressFromCredential(payload[29:], true)
	require.NoError(t, err)
	assert.Equal(t, expected, stakeAddr)

	_, err = StakeAddressFromCredential([]byte{0x01}, true)
	require.ErrorIs(t, err, ErrMalformedAddress)
}

func TestAddressType(t *testing.T) {
	addr, err := Encode("addr", testBasePayload(0x01))
	require.NoError(t, err)
	assert.Equal(t, "01", AddressType(addr))

	addr, err = Encode("addr_test", testBasePayload(0x70))
	require.NoError(t, err)
	assert.Equal(t, "70", AddressType(addr))

	// Byron addresses are base58 and never start with addr
	assert.Equal(
		t,
		LegacyAddressType,
		AddressType("DdzFFzCqrhsfZHjaBunVySZBU8i9Zom7Gujham6Jz8scCcAdkDmEbD9XSdXKdBiPoa1fjgL4ksGjQXD8ZkSNHGJfT25ieA9rWNCSA5qc"),
	)
}

func TestIsReceiveAddress(t *testing.T) {
	base, err := Encode("addr", testBasePayload(0x01))
	require.NoError(t, err)
	assert.True(t, IsReceiveAddress(base))

	testBase, err := Encode("addr_test", testBasePayload(0x00))
	require.NoError(t, err)
	assert.True(t, IsReceiveAddress(testBase))

	enterprise, err := Encode("addr", testBasePayload(0x61)[:29])
	require.NoError(t, err)
	assert.False(t, IsReceiveAddress(enterprise))
}

func TestPoolID(t *testing.T) {
	hash := bytes.Repeat([]byte{0x5a}, credentialLen)
	poolID, err := PoolIDBech32(hash)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(hash), ToHexPoolID(poolID))
	assert.Equal(t, "not-a-pool", ToHexPoolID("not-a-pool"))
}
