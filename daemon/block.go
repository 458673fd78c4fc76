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
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/numbat/chainsync"
	"github.com/blinklabs-io/numbat/commit"
	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/database/plugin/metadata"
	"github.com/blinklabs-io/numbat/event"
	"github.com/blinklabs-io/numbat/genesis"
	"github.com/blinklabs-io/numbat/ledger"
)

// Resources are the process wide dependencies shared by the daemons
type Resources struct {
	Logger           *slog.Logger
	DB               *database.Database
	EventBus         *event.EventBus
	Genesis          *genesis.Provider
	Dialer           chainsync.Dialer
	ChainsyncMetrics *chainsync.Metrics
	CommitMetrics    *commit.Metrics
	Tracer           trace.Tracer
}

// SyncConfig holds the follower settings common to all daemons
type SyncConfig struct {
	NodeToNode bool
	// FallbackSlot below zero starts from the origin
	FallbackSlot   int64
	FallbackHash   string
	RequestTimeout time.Duration
	PipelineLimit  int
	ReconnectDelay time.Duration
	WarnThreshold  time.Duration
}

type BlockDaemonConfig struct {
	Resources
	Sync  SyncConfig
	Sizer commit.SizerConfig
	// RawTransactions enables the raw transaction archive
	RawTransactions bool
}

// BlockDaemon follows the chain and commits the full ledger facts
type BlockDaemon struct {
	config BlockDaemonConfig
	logger *slog.Logger
}

func NewBlockDaemon(cfg BlockDaemonConfig) (*BlockDaemon, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &BlockDaemon{
		config: cfg,
		logger: cfg.Logger.With("component", "daemon", "daemon", "block"),
	}, nil
}

func (d *BlockDaemon) Name() string {
	return "block"
}

func (d *BlockDaemon) Run(ctx context.Context) error {
	params, err := d.config.Genesis.Params()
	if err != nil {
		return Fatal(fmt.Errorf("genesis parameters: %w", err))
	}
	processor, err := commit.NewLedgerProcessor(
		commit.LedgerProcessorConfig{
			Logger:          d.config.Logger,
			Extractor:       ledger.NewExtractor(params.IsMainnet(), d.config.Logger),
			Params:          params,
			RawTransactions: d.config.RawTransactions,
		},
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
			EventBus:      d.config.EventBus,
			WarnThreshold: d.config.Sync.WarnThreshold,
		},
	)
	if err != nil {
		return Fatal(err)
	}
	store := d.config.DB.Metadata()
	follower, err := chainsync.New(
		d.config.followerConfig(
			"",
			committer,
			func() ([]metadata.ChainPoint, error) {
				return store.RecentChainPoints(nil)
			},
			d.config.Sync,
		),
	)
	if err != nil {
		return Fatal(err)
	}
	// The tip query validates the network magic before the first sync
	err = retryForever(
		ctx,
		d.logger,
		d.config.Sync.ReconnectDelay,
		func(ctx context.Context) error {
			tip, err := chainsync.Probe(
				ctx,
				d.config.Dialer,
				params.NetworkMagic,
				d.config.Sync.NodeToNode,
			)
			if err != nil {
				return fmt.Errorf("probe node: %w", err)
			}
			d.logger.Info(
				fmt.Sprintf(
					"remote tip at height %d slot %d",
					tip.Height,
					tip.Slot,
				),
			)
			committer.SetTipHeight(tip.Height)
			return nil
		},
	)
	if err != nil {
		return err
	}
	return retryForever(
		ctx,
		d.logger,
		d.config.Sync.ReconnectDelay,
		func(ctx context.Context) error {
			defer committer.Reset()
			return follower.Run(ctx)
		},
	)
}

func (r Resources) validate() error {
	switch {
	case r.DB == nil:
		return errors.New("daemon: database is required")
	case r.Genesis == nil:
		return errors.New("daemon: genesis provider is required")
	case r.Dialer == nil:
		return errors.New("daemon: dialer is required")
	case r.EventBus == nil:
		return errors.New("daemon: event bus is required")
	}
	return nil
}

func (cfg *BlockDaemonConfig) validate() error {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return cfg.Resources.validate()
}

func (r Resources) followerConfig(
	partition string,
	handler chainsync.Handler,
	points func() ([]metadata.ChainPoint, error),
	sync SyncConfig,
) chainsync.Config {
	return chainsync.Config{
		Logger:         r.Logger,
		Metrics:        r.ChainsyncMetrics,
		EventBus:       r.EventBus,
		Genesis:        r.Genesis,
		Handler:        handler,
		Points:         pointSource(points),
		Dialer:         r.Dialer,
		Partition:      partition,
		FallbackHash:   sync.FallbackHash,
		FallbackSlot:   sync.FallbackSlot,
		RequestTimeout: sync.RequestTimeout,
		PipelineLimit:  sync.PipelineLimit,
		NodeToNode:     sync.NodeToNode,
	}
}

// pointSource converts stored chain points into protocol points
func pointSource(
	load func() ([]metadata.ChainPoint, error),
) chainsync.PointSource {
	return func() ([]ocommon.Point, error) {
		rows, err := load()
		if err != nil {
			return nil, err
		}
		ret := make([]ocommon.Point, 0, len(rows))
		for _, row := range rows {
			hash, err := hex.DecodeString(row.Hash)
			if err != nil {
				return nil, fmt.Errorf("decode hash of block %d: %w", row.Height, err)
			}
			ret = append(ret, ocommon.NewPoint(row.Slot, hash))
		}
		return ret, nil
	}
}
