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

package badger

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// BlobStoreBadgerOptionFunc adjusts the store settings before it is opened
type BlobStoreBadgerOptionFunc func(*BlobStoreBadger)

// WithLogger routes the badger log output through logger
func WithLogger(logger *slog.Logger) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.logger = logger
	}
}

// WithPromRegistry enables the badger metrics collector
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.promRegistry = registry
	}
}

// WithDataDir sets the directory of the store. An empty directory keeps
// the store in memory.
func WithDataDir(dataDir string) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.dataDir = dataDir
	}
}

// WithCacheSizes sets the block and index cache sizes in bytes. Zero keeps
// the default.
func WithCacheSizes(block uint64, index uint64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		if block > 0 {
			b.blockCacheSize = block
		}
		if index > 0 {
			b.indexCacheSize = index
		}
	}
}

// WithTableSizes sets the value log file and memtable sizes in bytes. Zero
// keeps the default.
func WithTableSizes(valueLogFile int64, memTable int64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		if valueLogFile > 0 {
			b.valueLogFileSize = valueLogFile
		}
		if memTable > 0 {
			b.memTableSize = memTable
		}
	}
}

// WithValueThreshold sets the size above which raw transactions are moved
// to the value log
func WithValueThreshold(threshold int64) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.valueThreshold = threshold
	}
}

// WithGc toggles the periodic value log garbage collection
func WithGc(enabled bool) BlobStoreBadgerOptionFunc {
	return func(b *BlobStoreBadger) {
		b.gcEnabled = enabled
	}
}
