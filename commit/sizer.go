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

package commit

import (
	"time"
)

const (
	DefaultHighWater = 10 * time.Second
	DefaultLowWater  = 5 * time.Second
	DefaultMaxBatch  = 1000
)

type SizerConfig struct {
	// Size is the batch size in fixed mode
	Size      int
	Min       int
	Max       int
	HighWater time.Duration
	LowWater  time.Duration
	Adaptive  bool
}

// BatchSizer decides when the buffered blocks are flushed. In adaptive mode
// the target size follows the observed commit time: it shrinks so that a
// commit fits in HighWater when commits run long and grows by one while
// commits stay under LowWater.
type BatchSizer struct {
	config SizerConfig
	size   int
}

func NewBatchSizer(cfg SizerConfig) *BatchSizer {
	if cfg.Min < 1 {
		cfg.Min = 1
	}
	if cfg.Max < cfg.Min {
		cfg.Max = max(cfg.Min, DefaultMaxBatch)
	}
	if cfg.HighWater <= 0 {
		cfg.HighWater = DefaultHighWater
	}
	if cfg.LowWater <= 0 || cfg.LowWater > cfg.HighWater {
		cfg.LowWater = min(DefaultLowWater, cfg.HighWater)
	}
	b := &BatchSizer{config: cfg}
	if cfg.Adaptive {
		b.size = cfg.Min
	} else {
		b.size = max(cfg.Size, 1)
	}
	return b
}

// Size returns the current target batch size
func (b *BatchSizer) Size() int {
	return b.size
}

// HighWater returns the commit time the batch size is shrunk to fit in
func (b *BatchSizer) HighWater() time.Duration {
	return b.config.HighWater
}

func (b *BatchSizer) Adaptive() bool {
	return b.config.Adaptive
}

// ShouldFlush reports whether a buffer holding buffered blocks is committed
// now. Tip blocks are always committed immediately.
func (b *BatchSizer) ShouldFlush(buffered int, atTip bool) bool {
	return atTip || buffered >= b.size
}

// Observe adjusts the target size after a commit of blocks blocks that took
// total
func (b *BatchSizer) Observe(blocks int, total time.Duration) {
	if !b.config.Adaptive || blocks <= 0 {
		return
	}
	switch {
	case total > b.config.HighWater:
		perBlock := total / time.Duration(blocks)
		next := 1
		if perBlock > 0 {
			next = max(1, int(b.config.HighWater/perBlock))
		}
		if next >= b.size {
			next = b.size - 1
		}
		b.size = max(next, b.config.Min)
	case total < b.config.LowWater:
		b.size = min(b.size+1, b.config.Max)
	}
}
