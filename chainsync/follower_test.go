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

package chainsync_test

import (
	"bytes"
	"context"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	gledger "github.com/blinklabs-io/gouroboros/ledger"
	"github.com/blinklabs-io/gouroboros/protocol"
	ochainsync "github.com/blinklabs-io/gouroboros/protocol/chainsync"
	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"
	ouroboros_mock "github.com/blinklabs-io/ouroboros-mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/numbat/chainsync"
	"github.com/blinklabs-io/numbat/genesis"
	"github.com/blinklabs-io/numbat/ledger"
)

var conversationFindIntersect = []ouroboros_mock.ConversationEntry{
	ouroboros_mock.ConversationEntryHandshakeRequestGeneric,
	ouroboros_mock.ConversationEntryHandshakeNtCResponse,
	ouroboros_mock.ConversationEntryInput{
		ProtocolId:  ochainsync.ProtocolIdNtC,
		MessageType: ochainsync.MessageTypeFindIntersect,
	},
}

var (
	testIntersect = ocommon.NewPoint(20001, bytes.Repeat([]byte{0x12}, 32))
	testTip       = ochainsync.Tip{
		BlockNumber: 12001,
		Point:       ocommon.NewPoint(20002, bytes.Repeat([]byte{0x34}, 32)),
	}
)

func conversation(entries ...ouroboros_mock.ConversationEntry) []ouroboros_mock.ConversationEntry {
	return append(slices.Clone(conversationFindIntersect), entries...)
}

func nodeResponse(msg protocol.Message) ouroboros_mock.ConversationEntryOutput {
	return ouroboros_mock.ConversationEntryOutput{
		ProtocolId: ochainsync.ProtocolIdNtC,
		IsResponse: true,
		Messages:   []protocol.Message{msg},
	}
}

var entryRequestNext = ouroboros_mock.ConversationEntryInput{
	ProtocolId:  ochainsync.ProtocolIdNtC,
	MessageType: ochainsync.MessageTypeRequestNext,
}

func testBabbageBlock(t *testing.T, height uint64, slot uint64) []byte {
	t.Helper()
	block := gledger.BabbageBlock{
		BlockHeader: &gledger.BabbageBlockHeader{},
	}
	block.BlockHeader.Body.BlockNumber = height
	block.BlockHeader.Body.Slot = slot
	data, err := cbor.Encode(block)
	require.NoError(t, err)
	return data
}

// conversationDialer hands out mock node connections that play back a fixed
// conversation
type conversationDialer struct {
	conversation []ouroboros_mock.ConversationEntry
	dials        atomic.Int32
}

func (d *conversationDialer) Dial(context.Context) (net.Conn, error) {
	d.dials.Add(1)
	return ouroboros_mock.NewConnection(
		ouroboros_mock.ProtocolRoleClient,
		d.conversation,
	), nil
}

type funcHandler struct {
	forward  func(context.Context, *ledger.Block, bool) error
	backward func(context.Context, ocommon.Point) error
}

func (h funcHandler) RollForward(ctx context.Context, block *ledger.Block, atTip bool) error {
	if h.forward == nil {
		return nil
	}
	return h.forward(ctx, block, atTip)
}

func (h funcHandler) RollBackward(ctx context.Context, point ocommon.Point) error {
	if h.backward == nil {
		return nil
	}
	return h.backward(ctx, point)
}

func newMockFollower(
	t *testing.T,
	dialer chainsync.Dialer,
	handler chainsync.Handler,
	requestTimeout time.Duration,
) *chainsync.Follower {
	t.Helper()
	params, ok := genesis.NetworkByName(genesis.NetworkPreview)
	require.True(t, ok)
	params.NetworkMagic = ouroboros_mock.MockNetworkMagic
	f, err := chainsync.New(
		chainsync.Config{
			Handler:        handler,
			Genesis:        genesis.NewStaticProvider(params),
			Dialer:         dialer,
			FallbackSlot:   -1,
			RequestTimeout: requestTimeout,
			PipelineLimit:  1,
		},
	)
	require.NoError(t, err)
	return f
}

func TestRunIntersectNotFound(t *testing.T) {
	dialer := &conversationDialer{
		conversation: conversation(
			nodeResponse(ochainsync.NewMsgIntersectNotFound(testTip)),
		),
	}
	f := newMockFollower(t, dialer, funcHandler{}, time.Second)
	// Every attempt offers the same points again and fails the same way
	for range 2 {
		err := f.Run(context.Background())
		require.ErrorIs(t, err, chainsync.ErrIntersectNotFound)
		assert.Equal(t, chainsync.StateDisconnected, f.State())
	}
	assert.Equal(t, int32(2), dialer.dials.Load())
}

func TestRunRollBackward(t *testing.T) {
	rollbackPoint := ocommon.NewPoint(19000, bytes.Repeat([]byte{0x56}, 32))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []ocommon.Point
	handler := funcHandler{
		backward: func(_ context.Context, point ocommon.Point) error {
			got = append(got, point)
			cancel()
			return nil
		},
	}
	dialer := &conversationDialer{
		conversation: conversation(
			nodeResponse(ochainsync.NewMsgIntersectFound(testIntersect, testTip)),
			entryRequestNext,
			nodeResponse(ochainsync.NewMsgRollBackward(rollbackPoint, testTip)),
		),
	}
	f := newMockFollower(t, dialer, handler, time.Second)
	err := f.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1)
	assert.Equal(t, rollbackPoint.Slot, got[0].Slot)
	assert.Equal(t, rollbackPoint.Hash, got[0].Hash)
}

func TestRunWaitsForHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	var finished atomic.Bool
	handler := funcHandler{
		backward: func(context.Context, ocommon.Point) error {
			close(started)
			time.Sleep(300 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	}
	dialer := &conversationDialer{
		conversation: conversation(
			nodeResponse(ochainsync.NewMsgIntersectFound(testIntersect, testTip)),
			entryRequestNext,
			nodeResponse(ochainsync.NewMsgRollBackward(testIntersect, testTip)),
		),
	}
	f := newMockFollower(t, dialer, handler, 10*time.Second)
	done := make(chan error, 1)
	go func() {
		done <- f.Run(ctx)
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, finished.Load(), "Run returned while the handler was running")
}

func TestRunStalledWhileCatchingUp(t *testing.T) {
	dialer := &conversationDialer{
		conversation: conversation(
			nodeResponse(ochainsync.NewMsgIntersectFound(testIntersect, testTip)),
		),
	}
	f := newMockFollower(t, dialer, funcHandler{}, 200*time.Millisecond)
	err := f.Run(context.Background())
	require.ErrorIs(t, err, chainsync.ErrStalled)
}

func TestRunHandlerTimeIsNotAStall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := funcHandler{
		backward: func(context.Context, ocommon.Point) error {
			// Several request timeouts spent committing
			time.Sleep(500 * time.Millisecond)
			cancel()
			return nil
		},
	}
	dialer := &conversationDialer{
		conversation: conversation(
			nodeResponse(ochainsync.NewMsgIntersectFound(testIntersect, testTip)),
			entryRequestNext,
			nodeResponse(ochainsync.NewMsgRollBackward(testIntersect, testTip)),
		),
	}
	f := newMockFollower(t, dialer, handler, 100*time.Millisecond)
	err := f.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRollForward(t *testing.T) {
	testDefs := []struct {
		name          string
		tipHeight     uint64
		expectedAtTip bool
		expectedState chainsync.State
	}{
		{
			name:          "catching up",
			tipHeight:     12005,
			expectedAtTip: false,
			expectedState: chainsync.StateSyncingCatchingUp,
		},
		{
			name:          "at tip",
			tipHeight:     12001,
			expectedAtTip: true,
			expectedState: chainsync.StateSyncingAtTip,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			tip := ochainsync.Tip{
				BlockNumber: testDef.tipHeight,
				Point:       testTip.Point,
			}
			var f *chainsync.Follower
			var got *ledger.Block
			var gotAtTip bool
			var gotState chainsync.State
			handler := funcHandler{
				forward: func(_ context.Context, block *ledger.Block, atTip bool) error {
					got = block
					gotAtTip = atTip
					gotState = f.State()
					cancel()
					return nil
				},
			}
			rollForward, err := ochainsync.NewMsgRollForwardNtC(
				gledger.BlockTypeBabbage,
				testBabbageBlock(t, 12001, 20002),
				tip,
			)
			require.NoError(t, err)
			dialer := &conversationDialer{
				conversation: conversation(
					nodeResponse(ochainsync.NewMsgIntersectFound(testIntersect, tip)),
					entryRequestNext,
					nodeResponse(rollForward),
				),
			}
			f = newMockFollower(t, dialer, handler, 5*time.Second)
			err = f.Run(ctx)
			require.ErrorIs(t, err, context.Canceled)
			require.NotNil(t, got)
			assert.Equal(t, ledger.EraBabbage, got.Era)
			assert.Equal(t, uint64(12001), got.Height)
			assert.Equal(t, uint64(20002), got.Slot)
			assert.Equal(t, testDef.expectedAtTip, gotAtTip)
			assert.Equal(t, testDef.expectedState, gotState)
		})
	}
}

func TestRunNoWatchdogAtTip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reached := make(chan struct{})
	var once sync.Once
	handler := funcHandler{
		forward: func(context.Context, *ledger.Block, bool) error {
			once.Do(func() { close(reached) })
			return nil
		},
	}
	rollForward, err := ochainsync.NewMsgRollForwardNtC(
		gledger.BlockTypeBabbage,
		testBabbageBlock(t, testTip.BlockNumber, testTip.Point.Slot),
		testTip,
	)
	require.NoError(t, err)
	dialer := &conversationDialer{
		conversation: conversation(
			nodeResponse(ochainsync.NewMsgIntersectFound(testIntersect, testTip)),
			entryRequestNext,
			nodeResponse(rollForward),
		),
	}
	f := newMockFollower(t, dialer, handler, 150*time.Millisecond)
	done := make(chan error, 1)
	go func() {
		done <- f.Run(ctx)
	}()
	select {
	case <-reached:
	case err := <-done:
		t.Fatalf("Run returned before reaching the tip: %s", err)
	case <-time.After(5 * time.Second):
		t.Fatal("tip was not reached")
	}
	// No block follows the tip for several request timeouts
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, chainsync.StateSyncingAtTip, f.State())
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
