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

// Package chainsync follows a node's chain with the chain-sync mini-protocol
// and hands normalized blocks to a handler in chain order.
package chainsync

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	ouroboros "github.com/blinklabs-io/gouroboros"
	gledger "github.com/blinklabs-io/gouroboros/ledger"
	oblockfetch "github.com/blinklabs-io/gouroboros/protocol/blockfetch"
	ochainsync "github.com/blinklabs-io/gouroboros/protocol/chainsync"
	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"

	"github.com/blinklabs-io/numbat/event"
	"github.com/blinklabs-io/numbat/genesis"
	"github.com/blinklabs-io/numbat/ledger"
	"github.com/blinklabs-io/numbat/ledger/eras"
)

const (
	DefaultPipelineLimit  = 50
	DefaultRequestTimeout = 30 * time.Second
)

var (
	ErrIntersectNotFound = errors.New("chain intersection not found")
	ErrStalled           = errors.New("no block received within request timeout")

	errSessionClosed = errors.New("chain-sync session closed")
)

// Handler receives the protocol events of a follower. Calls are made from a
// single goroutine in chain order, and Run does not return while a call is
// in flight.
type Handler interface {
	RollForward(ctx context.Context, block *ledger.Block, atTip bool) error
	RollBackward(ctx context.Context, point ocommon.Point) error
}

// PointSource returns the locally committed resume points, newest first
type PointSource func() ([]ocommon.Point, error)

type Config struct {
	Logger   *slog.Logger
	Metrics  *Metrics
	EventBus *event.EventBus
	Genesis  *genesis.Provider
	Handler  Handler
	Points   PointSource
	Dialer   Dialer
	// Partition names the committed state owned by this follower. The block
	// follower uses "".
	Partition    string
	FallbackHash string
	// FallbackSlot below zero starts from the origin
	FallbackSlot   int64
	RequestTimeout time.Duration
	PipelineLimit  int
	NodeToNode     bool
}

type Follower struct {
	config Config
	logger *slog.Logger
	state  atomic.Int32
}

func New(cfg Config) (*Follower, error) {
	if cfg.Handler == nil {
		return nil, errors.New("chainsync: handler is required")
	}
	if cfg.Genesis == nil {
		return nil, errors.New("chainsync: genesis provider is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("chainsync: dialer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.PipelineLimit <= 0 {
		cfg.PipelineLimit = DefaultPipelineLimit
	}
	f := &Follower{
		config: cfg,
		logger: cfg.Logger.With(
			"component", "chainsync",
			"partition", partitionLabel(cfg.Partition),
		),
	}
	return f, nil
}

func (f *Follower) State() State {
	return State(f.state.Load())
}

func (f *Follower) setState(s State) {
	prev := State(f.state.Swap(int32(s)))
	if prev == s {
		return
	}
	if f.config.Metrics != nil {
		f.config.Metrics.state.WithLabelValues(
			partitionLabel(f.config.Partition),
		).Set(float64(s))
	}
	f.logger.Debug(
		fmt.Sprintf("state %s -> %s", prev, s),
	)
	if f.config.EventBus != nil {
		f.config.EventBus.PublishAsync(
			event.SyncStateEventType,
			event.NewEvent(
				event.SyncStateEventType,
				event.SyncStateEvent{
					Partition: f.config.Partition,
					From:      prev.String(),
					To:        s.String(),
				},
			),
		)
	}
}

// IntersectPoints returns the committed resume points followed by the
// configured fallback point
func (f *Follower) IntersectPoints() ([]ocommon.Point, error) {
	var ret []ocommon.Point
	if f.config.Points != nil {
		points, err := f.config.Points()
		if err != nil {
			return nil, fmt.Errorf("load resume points: %w", err)
		}
		ret = append(ret, points...)
	}
	fallback, err := FallbackPoint(f.config.FallbackSlot, f.config.FallbackHash)
	if err != nil {
		return nil, err
	}
	return append(ret, fallback), nil
}

// FallbackPoint returns the configured start point, or the origin when slot
// is negative
func FallbackPoint(slot int64, hash string) (ocommon.Point, error) {
	if slot < 0 {
		return ocommon.NewPointOrigin(), nil
	}
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return ocommon.Point{}, fmt.Errorf("decode fallback hash: %w", err)
	}
	return ocommon.NewPoint(uint64(slot), hashBytes), nil
}

// session holds the per-connection state of Run
type session struct {
	follower *Follower
	ctx      context.Context
	conn     *ouroboros.Connection
	errCh    chan error
	progress chan progress
	// handlerMu is held for the duration of every handler call
	handlerMu sync.Mutex
	closed    bool
}

// progress tells the Run loop how to arm the stall watchdog
type progress struct {
	state State
	// busy is set while a handler call runs. Commit time is not a stall.
	busy bool
}

// watchdogArmed reports whether the stall watchdog runs in state s. At tip
// the next block may take arbitrarily long.
func (s State) watchdogArmed() bool {
	return s == StateSyncingCatchingUp
}

// atTip reports whether a block at height is the node's tip
func atTip(height uint64, tipHeight uint64) bool {
	return height == max(height, tipHeight)
}

// Run connects, finds the intersection and streams blocks to the handler
// until the context is canceled or the connection fails. It always returns
// a non-nil error and leaves the follower disconnected. A handler call in
// flight is allowed to finish before Run returns.
func (f *Follower) Run(ctx context.Context) error {
	defer f.setState(StateDisconnected)
	f.setState(StateConnecting)
	if f.config.Metrics != nil {
		f.config.Metrics.connects.WithLabelValues(
			partitionLabel(f.config.Partition),
		).Inc()
	}
	params, err := f.config.Genesis.Params()
	if err != nil {
		return fmt.Errorf("genesis parameters: %w", err)
	}
	netConn, err := f.config.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	s := &session{
		follower: f,
		ctx:      ctx,
		errCh:    make(chan error, 1),
		progress: make(chan progress, 1),
	}
	opts := []ouroboros.ConnectionOptionFunc{
		ouroboros.WithConnection(netConn),
		ouroboros.WithNetworkMagic(params.NetworkMagic),
		ouroboros.WithNodeToNode(f.config.NodeToNode),
		ouroboros.WithKeepAlive(f.config.NodeToNode),
		ouroboros.WithChainSyncConfig(
			ochainsync.NewConfig(
				ochainsync.WithRollForwardFunc(s.rollForward),
				ochainsync.WithRollBackwardFunc(s.rollBackward),
				ochainsync.WithPipelineLimit(f.config.PipelineLimit),
				// Set the recv queue size to 2x our pipeline limit
				ochainsync.WithRecvQueueSize(2*f.config.PipelineLimit),
			),
		),
	}
	if f.config.NodeToNode {
		opts = append(
			opts,
			ouroboros.WithBlockFetchConfig(
				oblockfetch.NewConfig(
					oblockfetch.WithBatchStartTimeout(f.config.RequestTimeout),
					oblockfetch.WithBlockTimeout(f.config.RequestTimeout),
				),
			),
		)
	}
	oConn, err := ouroboros.NewConnection(opts...)
	if err != nil {
		netConn.Close()
		return fmt.Errorf("create ouroboros connection: %w", err)
	}
	defer oConn.Close()
	// Runs before the connection is closed
	defer s.drain()
	s.conn = oConn
	f.setState(StateFindingIntersection)
	points, err := f.IntersectPoints()
	if err != nil {
		return err
	}
	if err := oConn.ChainSync().Client.Sync(points); err != nil {
		if errors.Is(err, ochainsync.ErrIntersectNotFound) {
			return fmt.Errorf("%w: %d points offered", ErrIntersectNotFound, len(points))
		}
		return fmt.Errorf("find intersection: %w", err)
	}
	f.setState(StateSyncingCatchingUp)
	f.logger.Info(
		"chain-sync started",
		"points", len(points),
	)
	watchdog := time.NewTimer(f.config.RequestTimeout)
	defer watchdog.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errCh:
			return err
		case err, ok := <-oConn.ErrorChan():
			if !ok {
				return errors.New("connection closed")
			}
			// A handler error also surfaces here as a protocol error
			select {
			case herr := <-s.errCh:
				return herr
			default:
			}
			return fmt.Errorf("connection: %w", err)
		case p := <-s.progress:
			watchdog.Stop()
			if !p.busy && p.state.watchdogArmed() {
				watchdog.Reset(f.config.RequestTimeout)
			}
		case <-watchdog.C:
			if f.State().watchdogArmed() {
				return ErrStalled
			}
		}
	}
}

// drain waits for a handler call in flight and refuses later ones
func (s *session) drain() {
	s.handlerMu.Lock()
	s.closed = true
	s.handlerMu.Unlock()
}

// callHandler runs fn with the watchdog paused. The state st is reported
// once fn returns.
func (s *session) callHandler(st State, fn func() error) error {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	s.signalProgress(progress{state: st, busy: true})
	if err := fn(); err != nil {
		return s.fail(err)
	}
	s.signalProgress(progress{state: st})
	return nil
}

func (s *session) fail(err error) error {
	select {
	case s.errCh <- err:
	default:
	}
	return err
}

func (s *session) signalProgress(p progress) {
	select {
	case s.progress <- p:
	default:
		// Drain a stale signal so the newest one wins
		select {
		case <-s.progress:
		default:
		}
		select {
		case s.progress <- p:
		default:
		}
	}
}

func (s *session) rollForward(
	ctx ochainsync.CallbackContext,
	blockType uint,
	blockData any,
	tip ochainsync.Tip,
) error {
	f := s.follower
	var block gledger.Block
	switch v := blockData.(type) {
	case gledger.Block:
		block = v
	case gledger.BlockHeader:
		tmpBlock, err := s.conn.BlockFetch().Client.GetBlock(
			ocommon.NewPoint(v.SlotNumber(), v.Hash().Bytes()),
		)
		if err != nil {
			return s.fail(fmt.Errorf("fetch block %d: %w", v.BlockNumber(), err))
		}
		block = tmpBlock
	default:
		return s.fail(fmt.Errorf("unexpected block data type: %T", v))
	}
	height := block.BlockNumber()
	isAtTip := atTip(height, tip.BlockNumber)
	st := StateSyncingCatchingUp
	if isAtTip {
		st = StateSyncingAtTip
	}
	f.setState(st)
	if f.config.Metrics != nil {
		label := partitionLabel(f.config.Partition)
		f.config.Metrics.blocksReceived.WithLabelValues(label).Inc()
		f.config.Metrics.tipHeight.WithLabelValues(label).Set(float64(tip.BlockNumber))
	}
	nb, err := eras.Normalize(block, f.logger)
	if err != nil {
		return s.fail(fmt.Errorf("normalize block: %w", err))
	}
	if nb == nil {
		// Epoch boundary block
		s.signalProgress(progress{state: st})
		return nil
	}
	return s.callHandler(st, func() error {
		return f.config.Handler.RollForward(s.ctx, nb, isAtTip)
	})
}

func (s *session) rollBackward(
	ctx ochainsync.CallbackContext,
	point ocommon.Point,
	tip ochainsync.Tip,
) error {
	f := s.follower
	if f.config.Metrics != nil {
		f.config.Metrics.rollbacks.WithLabelValues(
			partitionLabel(f.config.Partition),
		).Inc()
	}
	f.logger.Info(
		"rollback",
		"slot", point.Slot,
		"hash", hex.EncodeToString(point.Hash),
		"tip", tip.BlockNumber,
	)
	return s.callHandler(f.State(), func() error {
		return f.config.Handler.RollBackward(s.ctx, point)
	})
}
