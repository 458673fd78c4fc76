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

package commit_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/numbat/commit"
	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/ledger"
)

func newAddressCommitter(
	t *testing.T,
	db *database.Database,
	addr string,
) (*commit.Committer, *commit.AddressProcessor) {
	t.Helper()
	processor, err := commit.NewAddressProcessor(ledger.NewExtractor(true, nil), addr)
	require.NoError(t, err)
	c, err := commit.New(
		commit.Config{
			DB:        db,
			Processor: processor,
			Sizer:     commit.NewBatchSizer(commit.SizerConfig{Adaptive: true}),
			Partition: addr,
		},
	)
	require.NoError(t, err)
	return c, processor
}

func TestAddressProcessor(t *testing.T) {
	db := newTestDatabase(t)
	addr := testAddress(t, 0x10)
	blocks := testChain(addr, 1, 4, 0)
	// The shared output set is written by the block follower
	addAll(t, newLedgerCommitter(t, db, commit.NewBatchSizer(commit.SizerConfig{Size: 10}), nil), blocks)

	c, processor := newAddressCommitter(t, db, addr)
	assert.Equal(t, addr, processor.Address())
	assert.False(t, processor.FeedMode())
	addAll(t, c, blocks[:3])

	store := db.Metadata()
	logs, err := store.GetAddressTxs(addr, nil)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	record, err := commit.DecodeAddressTx(logs[1].Cbor)
	require.NoError(t, err)
	assert.Equal(t, testTxID(2, 0), record.TxID)
	require.Len(t, record.Created, 1)
	assert.Equal(t, 0, record.Created[0].Lovelace.Cmp(big.NewInt(2_000_000)))
	require.Len(t, record.Spent, 1)
	assert.Equal(t, testTxID(1, 0), record.Spent[0].TxID)
	assert.Equal(t, 0, record.Spent[0].Lovelace.Cmp(big.NewInt(1_000_000)))

	cursor, err := store.GetAddressCursor(addr, nil)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.False(t, cursor.AtTip())
	assert.Equal(t, uint64(3), cursor.Height)
	assert.Equal(t, int64(30), cursor.Slot)

	// Following the committed feed leaves only the marker
	processor.SetFeedMode(true)
	require.NoError(t, c.Add(context.Background(), blocks[3], true))
	cursor, err = store.GetAddressCursor(addr, nil)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, cursor.AtTip())
	assert.Equal(t, uint64(4), cursor.Height)
	points, err := store.GetAddressChainPoints(addr, nil)
	require.NoError(t, err)
	assert.Empty(t, points)
	logs, err = store.GetAddressTxs(addr, nil)
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}

func TestAddressProcessorOtherAddress(t *testing.T) {
	db := newTestDatabase(t)
	blocks := testChain(testAddress(t, 0x10), 1, 2, 0)
	other := testAddress(t, 0x40)
	c, _ := newAddressCommitter(t, db, other)
	addAll(t, c, blocks)
	logs, err := db.Metadata().GetAddressTxs(other, nil)
	require.NoError(t, err)
	assert.Empty(t, logs)
	cursor, err := db.Metadata().GetAddressCursor(other, nil)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, uint64(2), cursor.Height)
}

func TestAddressProcessorRollback(t *testing.T) {
	db := newTestDatabase(t)
	addr := testAddress(t, 0x10)
	c, _ := newAddressCommitter(t, db, addr)
	addAll(t, c, testChain(addr, 1, 3, 0))
	// Replacing block 2 removes the log entries of 2 and 3
	addAll(t, c, testChain(addr, 2, 2, 1))
	logs, err := db.Metadata().GetAddressTxs(addr, nil)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, testTxID(1, 0), logs[0].TxId)
	assert.Equal(t, testTxID(2, 1), logs[1].TxId)
	cursor, err := db.Metadata().GetAddressCursor(addr, nil)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, uint64(2), cursor.Height)
}
