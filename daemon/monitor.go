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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"

	"github.com/blinklabs-io/numbat/chainsync"
	"github.com/blinklabs-io/numbat/commit"
	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/database/plugin/metadata"
	"github.com/blinklabs-io/numbat/event"
	"github.com/blinklabs-io/numbat/genesis"
	"github.com/blinklabs-io/numbat/ledger"
)

var (
	ErrFeedGap    = errors.New("gap in committed block feed")
	ErrFeedClosed = errors.New("committed block feed closed")

	errCaughtUp = errors.New("caught up with block daemon")
)

type MonitorAddressDaemonConfig struct {
	Resources
	Sync    SyncConfig
	Address string
	// Sizer is always adaptive
	Sizer commit.SizerConfig
}

// MonitorAddressDaemon records the transactions touching one address. It
// syncs from the network until it reaches the tip or the block daemon, then
// follows the blocks committed by the block daemon.
type MonitorAddressDaemon struct {
	config      MonitorAddressDaemonConfig
	logger      *slog.Logger
	blockHeight atomic.Uint64
	// blockSeen is set once the block daemon committed a block
	blockSeen atomic.Bool
}

func NewMonitorAddressDaemon(
	cfg MonitorAddressDaemonConfig,
) (*MonitorAddressDaemon, error) {
	if cfg.Address == "" {
		return nil, errors.New("daemon: address is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := cfg.Resources.validate(); err != nil {
		return nil, err
	}
	cfg.Sizer.Adaptive = true
	return &MonitorAddressDaemon{
		config: cfg,
		logger: cfg.Logger.With(
			"component", "daemon",
			"daemon", "monitor",
			"address", cfg.Address,
		),
	}, nil
}

func (d *MonitorAddressDaemon) Name() string {
	return "monitor " + d.config.Address
}

// monitorSession is the state shared by the sync modes of one Run
type monitorSession struct {
	daemon    *MonitorAddressDaemon
	params    *genesis.Params
	processor *commit.AddressProcessor
	committer *commit.Committer
	follower  *chainsync.Follower
	// feed is set while the daemon is subscribed to committed blocks
	feed *feedSubscription
	// height of the last block handed to the committer
	last uint64
}

func (d *MonitorAddressDaemon) Run(ctx context.Context) error {
	params, err := d.config.Genesis.Params()
	if err != nil {
		return Fatal(fmt.Errorf("genesis parameters: %w", err))
	}
	processor, err := commit.NewAddressProcessor(
		ledger.NewExtractor(params.IsMainnet(), d.config.Logger),
		d.config.Address,
	)
	if err != nil {
		return Fatal(err)
	}
	committer, err := commit.New(
		commit.Config{
			Logger:        d.config.Logger,
			DB:            d.config.DB,
			Processor:     processor,
			Sizer:         commit.NewBatchSizer(d.config.Sizer),
			Metrics:       d.config.CommitMetrics,
			Tracer:        d.config.Tracer,
			Partition:     d.config.Address,
			WarnThreshold: d.config.Sync.WarnThreshold,
		},
	)
	if err != nil {
		return Fatal(err)
	}
	s := &monitorSession{
		daemon:    d,
		params:    params,
		processor: processor,
		committer: committer,
	}
	store := d.config.DB.Metadata()
	s.follower, err = chainsync.New(
		d.config.followerConfig(
			d.config.Address,
			s,
			func() ([]metadata.ChainPoint, error) {
				return store.GetAddressChainPoints(d.config.Address, nil)
			},
			d.config.Sync,
		),
	)
	if err != nil {
		return Fatal(err)
	}
	// Track the height of the block daemon for the switch to the feed
	heightSubId := d.config.EventBus.SubscribeFunc(
		event.BlockCommittedEventType,
		func(evt event.Event) {
			data, ok := evt.Data.(event.BlockCommittedEvent)
			if !ok {
				return
			}
			d.blockHeight.Store(data.Block.Height)
			d.blockSeen.Store(true)
		},
	)
	defer d.config.EventBus.Unsubscribe(event.BlockCommittedEventType, heightSubId)
	defer s.closeFeed()
	return retryForever(
		ctx,
		d.logger,
		d.config.Sync.ReconnectDelay,
		s.run,
	)
}

// BlockDaemonHeight returns the height of the last block committed by the
// block daemon, if any
func (d *MonitorAddressDaemon) BlockDaemonHeight() (uint64, bool) {
	return d.blockHeight.Load(), d.blockSeen.Load()
}

func (s *monitorSession) run(ctx context.Context) error {
	defer s.committer.Reset()
	s.closeFeed()
	feed, err := s.resolveMode(ctx)
	if err != nil {
		return err
	}
	if !feed {
		s.processor.SetFeedMode(false)
		err := s.follower.Run(ctx)
		if !errors.Is(err, errCaughtUp) {
			return err
		}
		s.daemon.logger.Info(
			fmt.Sprintf("reached tip at height %d, following committed blocks", s.last),
		)
	}
	return s.followFeed(ctx)
}

// resolveMode reports whether the daemon can follow the committed feed
// right away. A marker left behind the network tip is turned back into a
// regular cursor so that the network sync resumes after it.
func (s *monitorSession) resolveMode(ctx context.Context) (bool, error) {
	cfg := &s.daemon.config
	store := cfg.DB.Metadata()
	cursor, err := store.GetAddressCursor(cfg.Address, nil)
	if err != nil {
		return false, fmt.Errorf("load cursor: %w", err)
	}
	if cursor == nil || !cursor.AtTip() {
		return false, nil
	}
	tip, err := chainsync.Probe(
		ctx,
		cfg.Dialer,
		s.params.NetworkMagic,
		cfg.Sync.NodeToNode,
	)
	if err != nil {
		return false, fmt.Errorf("probe node: %w", err)
	}
	if tip.Height <= cursor.Height {
		s.last = cursor.Height
		s.subscribeFeed()
		return true, nil
	}
	block, err := store.GetChainBlock(cursor.Height, nil)
	if err != nil {
		return false, fmt.Errorf("load block %d: %w", cursor.Height, err)
	}
	txn := cfg.DB.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		if block != nil && block.Hash == cursor.Hash {
			return store.ResumeAddressCursor(
				cfg.Address,
				block.Height,
				block.Slot,
				block.Hash,
				txn.Metadata(),
			)
		}
		s.daemon.logger.Warn(
			fmt.Sprintf(
				"block %d of tip marker is no longer known, resyncing from start",
				cursor.Height,
			),
		)
		return store.RollbackAddress(cfg.Address, 0, txn.Metadata())
	})
	if err != nil {
		return false, fmt.Errorf("resume cursor: %w", err)
	}
	return false, nil
}

// RollForward implements chainsync.Handler for the network sync
func (s *monitorSession) RollForward(
	ctx context.Context,
	block *ledger.Block,
	atTip bool,
) error {
	reached := atTip
	if height, ok := s.daemon.BlockDaemonHeight(); ok && block.Height >= height {
		reached = true
	}
	s.last = block.Height
	if !reached {
		return s.committer.Add(ctx, block, false)
	}
	// Subscribe before the marker is written, so that blocks committed
	// meanwhile are not missed
	s.subscribeFeed()
	s.processor.SetFeedMode(true)
	if err := s.committer.Add(ctx, block, true); err != nil {
		return err
	}
	return errCaughtUp
}

// RollBackward implements chainsync.Handler for the network sync
func (s *monitorSession) RollBackward(
	ctx context.Context,
	point ocommon.Point,
) error {
	return s.committer.RollBackward(ctx, point)
}

// followFeed commits the blocks published by the block daemon. Blocks at or
// below the last height are replays after a rollback and are committed
// again. A missing height sends the daemon back to the network.
func (s *monitorSession) followFeed(ctx context.Context) error {
	s.processor.SetFeedMode(true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.feed.ch:
			if !ok {
				return ErrFeedClosed
			}
			data, ok := evt.Data.(event.BlockCommittedEvent)
			if !ok || data.Block == nil {
				continue
			}
			if data.Block.Height > s.last+1 {
				if err := s.committer.Flush(ctx, false); err != nil {
					return err
				}
				return fmt.Errorf(
					"%w: expected height %d, got %d",
					ErrFeedGap,
					s.last+1,
					data.Block.Height,
				)
			}
			if err := s.committer.Add(ctx, data.Block, data.AtTip); err != nil {
				return err
			}
			s.last = data.Block.Height
		}
	}
}

type feedSubscription struct {
	bus *event.EventBus
	id  event.EventSubscriberId
	ch  <-chan event.Event
}

func (s *monitorSession) subscribeFeed() {
	if s.feed != nil {
		return
	}
	bus := s.daemon.config.EventBus
	id, ch := bus.Subscribe(event.BlockCommittedEventType)
	s.feed = &feedSubscription{bus: bus, id: id, ch: ch}
}

func (s *monitorSession) closeFeed() {
	if s.feed == nil {
		return
	}
	s.feed.bus.Unsubscribe(event.BlockCommittedEventType, s.feed.id)
	s.feed = nil
}
