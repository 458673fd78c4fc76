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

package types_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/numbat/database/types"
)

func TestBigIntScanValue(t *testing.T) {
	huge, ok := new(big.Int).SetString("45000000000000000123456789", 10)
	require.True(t, ok)
	testDefs := []struct {
		origValue   types.BigInt
		expectedVal string
	}{
		{origValue: types.NewBigInt(big.NewInt(0)), expectedVal: "0"},
		{origValue: types.NewBigInt(big.NewInt(-42)), expectedVal: "-42"},
		{origValue: types.NewBigInt(huge), expectedVal: "45000000000000000123456789"},
		{origValue: types.BigInt{}, expectedVal: "0"},
	}
	for _, testDef := range testDefs {
		val, err := testDef.origValue.Value()
		require.NoError(t, err)
		assert.Equal(t, testDef.expectedVal, val)
		var scanned types.BigInt
		require.NoError(t, scanned.Scan(val))
		assert.Equal(t, testDef.expectedVal, scanned.String())
		var scannedBytes types.BigInt
		require.NoError(t, scannedBytes.Scan([]byte(testDef.expectedVal)))
		assert.Equal(t, testDef.expectedVal, scannedBytes.String())
	}
}

func TestBigIntScanInvalid(t *testing.T) {
	var b types.BigInt
	assert.Error(t, b.Scan("not a number"))
	assert.Error(t, b.Scan(1.5))
	require.NoError(t, b.Scan(int64(7)))
	assert.Equal(t, int64(7), b.Int64())
}

func TestNewBigIntCopies(t *testing.T) {
	src := big.NewInt(5)
	b := types.NewBigInt(src)
	src.SetInt64(6)
	assert.Equal(t, int64(5), b.Int64())
	assert.Equal(t, int64(0), types.NewBigInt(nil).Int64())
}

func TestRawTxBlobIndexKey(t *testing.T) {
	txId := []byte{0xde, 0xad, 0xbe, 0xef}
	key := types.RawTxBlobIndexKey(258, txId)
	assert.Equal(
		t,
		[]byte{'r', 'h', 0, 0, 0, 0, 0, 0, 1, 2, 0xde, 0xad, 0xbe, 0xef},
		key,
	)
	assert.Equal(t, txId, types.RawTxIdFromBlobIndexKey(key))
	assert.Nil(t, types.RawTxIdFromBlobIndexKey(types.RawTxBlobIndexHeightPrefix(258)))
	// Index keys sort by height
	assert.Less(
		t,
		string(types.RawTxBlobIndexKey(255, txId)),
		string(types.RawTxBlobIndexHeightPrefix(256)),
	)
	assert.Equal(t, append([]byte("rt"), txId...), types.RawTxBlobKey(txId))
}
