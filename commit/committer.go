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

// Package commit buffers normalized blocks and commits their ledger facts in
// batches, one database transaction per batch.
package commit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/event"
	"github.com/blinklabs-io/numbat/ledger"
)

const (
	DefaultWarnThreshold = time.Second
	progressLogInterval  = 10 * time.Second
	tracerName           = "github.com/blinklabs-io/numbat/commit"
)

// Processor writes the facts of one partition
type Processor interface {
	// Rollback invalidates every fact of the partition at or above height
	Rollback(txn *database.Txn, height uint64) error
	// Apply writes the facts of a block
	Apply(ctx context.Context, txn *database.Txn, block *ledger.Block) error
	// Finish runs once per batch after the last block is applied
	Finish(txn *database.Txn, last *ledger.Block, atTip bool) error
}

type Config struct {
	Logger    *slog.Logger
	DB        *database.Database
	Processor Processor
	Sizer     *BatchSizer
	Metrics   *Metrics
	Tracer    trace.Tracer
	// EventBus receives a committed event per block when set
	EventBus      *event.EventBus
	Partition     string
	WarnThreshold time.Duration
}

// Committer owns the block buffer of one follower. It is not safe for
// concurrent use.
type Committer struct {
	config      Config
	logger      *slog.Logger
	buffer      []*ledger.Block
	progressLog rate.Sometimes
	tipHeight   uint64
	lastHeight  uint64
}

func New(cfg Config) (*Committer, error) {
	if cfg.DB == nil {
		return nil, errors.New("commit: database is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("commit: processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Sizer == nil {
		cfg.Sizer = NewBatchSizer(SizerConfig{Adaptive: true})
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = DefaultWarnThreshold
	}
	c := &Committer{
		config: cfg,
		logger: cfg.Logger.With(
			"component", "commit",
			"partition", partitionLabel(cfg.Partition),
		),
		progressLog: rate.Sometimes{Interval: progressLogInterval},
	}
	return c, nil
}

// Buffered returns the number of blocks waiting for a commit
func (c *Committer) Buffered() int {
	return len(c.buffer)
}

// LastHeight returns the height of the last committed block
func (c *Committer) LastHeight() uint64 {
	return c.lastHeight
}

// SetTipHeight records the remote tip used for progress reporting
func (c *Committer) SetTipHeight(height uint64) {
	c.tipHeight = max(c.tipHeight, height)
}

// Add buffers a block and commits the buffer when the sizer asks for it
func (c *Committer) Add(ctx context.Context, block *ledger.Block, atTip bool) error {
	c.buffer = append(c.buffer, block)
	if atTip {
		c.tipHeight = block.Height
	} else {
		c.tipHeight = max(c.tipHeight, block.Height)
	}
	if !c.config.Sizer.ShouldFlush(len(c.buffer), atTip) {
		return nil
	}
	return c.Flush(ctx, atTip)
}

// Rollback drops the buffered blocks after point. Committed facts past the
// point are invalidated when the next block is committed.
func (c *Committer) Rollback(point ocommon.Point) {
	keep := 0
	for _, block := range c.buffer {
		if block.Slot > point.Slot {
			break
		}
		keep++
	}
	if dropped := len(c.buffer) - keep; dropped > 0 {
		c.logger.Debug(
			fmt.Sprintf("dropped %d buffered blocks after slot %d", dropped, point.Slot),
		)
	}
	clear(c.buffer[keep:])
	c.buffer = c.buffer[:keep]
}

// Reset discards the buffer
func (c *Committer) Reset() {
	clear(c.buffer)
	c.buffer = c.buffer[:0]
}

// RollForward implements chainsync.Handler
func (c *Committer) RollForward(
	ctx context.Context,
	block *ledger.Block,
	atTip bool,
) error {
	return c.Add(ctx, block, atTip)
}

// RollBackward implements chainsync.Handler
func (c *Committer) RollBackward(
	ctx context.Context,
	point ocommon.Point,
) error {
	c.Rollback(point)
	return nil
}

// Flush commits the buffered blocks in a single transaction. The commit is
// not interrupted by cancellation of ctx. The buffer is emptied whether or
// not the commit succeeds.
func (c *Committer) Flush(ctx context.Context, atTip bool) error {
	if len(c.buffer) == 0 {
		return nil
	}
	blocks := c.buffer
	c.buffer = nil
	ctx = context.WithoutCancel(ctx)
	first := blocks[0]
	last := blocks[len(blocks)-1]
	ctx, span := c.config.Tracer.Start(
		ctx,
		"commit.flush",
		trace.WithAttributes(
			attribute.String("partition", partitionLabel(c.config.Partition)),
			attribute.Int("blocks", len(blocks)),
			attribute.Int64("first_height", int64(first.Height)), // #nosec G115
			attribute.Int64("last_height", int64(last.Height)),   // #nosec G115
			attribute.Bool("at_tip", atTip),
		),
	)
	defer span.End()
	var rollbackTime, applyTime time.Duration
	start := time.Now()
	txn := c.config.DB.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		for i, block := range blocks {
			// Blocks within a batch ascend, so only a height at or below the
			// previous one can collide with committed facts
			if i == 0 || block.Height <= blocks[i-1].Height {
				rbStart := time.Now()
				if err := c.config.Processor.Rollback(txn, block.Height); err != nil {
					return fmt.Errorf("rollback to height %d: %w", block.Height, err)
				}
				rollbackTime += time.Since(rbStart)
			}
			applyStart := time.Now()
			if err := c.config.Processor.Apply(ctx, txn, block); err != nil {
				return fmt.Errorf("apply block %d: %w", block.Height, err)
			}
			applyTime += time.Since(applyStart)
		}
		return c.config.Processor.Finish(txn, last, atTip)
	})
	elapsed := time.Since(start)
	label := partitionLabel(c.config.Partition)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		if c.config.Metrics != nil {
			c.config.Metrics.commitFailures.WithLabelValues(label).Inc()
		}
		return fmt.Errorf(
			"commit blocks %d-%d: %w",
			first.Height,
			last.Height,
			err,
		)
	}
	c.lastHeight = last.Height
	c.config.Sizer.Observe(len(blocks), elapsed)
	if c.config.Metrics != nil {
		c.config.Metrics.commitDuration.WithLabelValues(label).Observe(elapsed.Seconds())
		c.config.Metrics.batchSize.WithLabelValues(label).Set(float64(c.config.Sizer.Size()))
		c.config.Metrics.committedHeight.WithLabelValues(label).Set(float64(last.Height))
		c.config.Metrics.blocksCommitted.WithLabelValues(label).Add(float64(len(blocks)))
	}
	c.logProgress(last, atTip)
	if c.slowCommit(elapsed, atTip) {
		c.logger.Warn(
			fmt.Sprintf("slow commit of %d blocks", len(blocks)),
			"total_ms", elapsed.Milliseconds(),
			"rollback_ms", rollbackTime.Milliseconds(),
			"apply_ms", applyTime.Milliseconds(),
			"height", last.Height,
		)
	}
	if c.config.EventBus != nil {
		for i, block := range blocks {
			c.config.EventBus.Publish(
				event.BlockCommittedEventType,
				event.NewEvent(
					event.BlockCommittedEventType,
					event.BlockCommittedEvent{
						Block: block,
						AtTip: atTip && i == len(blocks)-1,
					},
				),
			)
		}
	}
	return nil
}

// slowCommit reports whether a commit took long enough to warn about. Off the
// tip the adaptive sizer absorbs commits up to its high-water mark.
func (c *Committer) slowCommit(elapsed time.Duration, atTip bool) bool {
	if atTip {
		return elapsed > c.config.WarnThreshold
	}
	return elapsed > c.config.Sizer.HighWater()
}

func (c *Committer) logProgress(last *ledger.Block, atTip bool) {
	logFn := func() {
		tipHeight := max(c.tipHeight, last.Height)
		percent := 100.0
		if tipHeight > 0 {
			percent = float64(last.Height) / float64(tipHeight) * 100
		}
		c.logger.Info(
			fmt.Sprintf(
				"committed block %d of %d (%.2f%%)",
				last.Height,
				tipHeight,
				percent,
			),
			"slot", last.Slot,
			"batch_size", c.config.Sizer.Size(),
		)
	}
	if atTip {
		logFn()
		return
	}
	c.progressLog.Do(logFn)
}
