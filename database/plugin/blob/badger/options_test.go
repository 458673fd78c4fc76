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
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	b := &BlobStoreBadger{
		blockCacheSize:   DefaultBlockCacheSize,
		indexCacheSize:   DefaultIndexCacheSize,
		valueLogFileSize: DefaultValueLogFileSize,
		memTableSize:     DefaultMemTableSize,
	}
	for _, opt := range []BlobStoreBadgerOptionFunc{
		WithDataDir("/tmp/test"),
		WithCacheSizes(123456789, 0),
		WithTableSizes(0, 1<<21),
		WithLogger(logger),
		WithPromRegistry(registry),
		WithGc(false),
		WithValueThreshold(64),
	} {
		opt(b)
	}
	assert.Equal(t, "/tmp/test", b.dataDir)
	assert.Equal(t, uint64(123456789), b.blockCacheSize)
	// Zero sizes keep the defaults
	assert.Equal(t, uint64(DefaultIndexCacheSize), b.indexCacheSize)
	assert.Equal(t, int64(DefaultValueLogFileSize), b.valueLogFileSize)
	assert.Equal(t, int64(1<<21), b.memTableSize)
	assert.Same(t, logger, b.logger)
	assert.Equal(t, prometheus.Registerer(registry), b.promRegistry)
	assert.False(t, b.gcEnabled)
	assert.Equal(t, int64(64), b.valueThreshold)
}
