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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blinklabs-io/numbat/commit"
)

func TestBatchSizerFixed(t *testing.T) {
	sizer := commit.NewBatchSizer(commit.SizerConfig{Size: 3})
	assert.False(t, sizer.Adaptive())
	assert.Equal(t, 3, sizer.Size())
	assert.False(t, sizer.ShouldFlush(2, false))
	assert.True(t, sizer.ShouldFlush(3, false))
	assert.True(t, sizer.ShouldFlush(1, true))
	sizer.Observe(3, time.Minute)
	sizer.Observe(3, time.Millisecond)
	assert.Equal(t, 3, sizer.Size())
}

func TestBatchSizerAdaptiveGrows(t *testing.T) {
	sizer := commit.NewBatchSizer(commit.SizerConfig{Adaptive: true, Max: 100})
	assert.Equal(t, 1, sizer.Size())
	for i := 2; i <= 10; i++ {
		sizer.Observe(sizer.Size(), time.Second)
		assert.Equal(t, i, sizer.Size(), "grows by exactly one")
	}
	// Between the water marks the size holds
	sizer.Observe(10, 7*time.Second)
	assert.Equal(t, 10, sizer.Size())
}

func TestBatchSizerAdaptiveShrinks(t *testing.T) {
	sizer := commit.NewBatchSizer(commit.SizerConfig{Adaptive: true, Max: 100})
	for range 9 {
		sizer.Observe(sizer.Size(), time.Second)
	}
	assert.Equal(t, 10, sizer.Size())
	// 10 blocks in 40s is 4s per block, so 10s buys 2 blocks
	sizer.Observe(10, 40*time.Second)
	assert.Equal(t, 2, sizer.Size())
	// A tip flush larger than the target still shrinks it
	sizer.Observe(10, 11*time.Second)
	assert.Equal(t, 1, sizer.Size())
	sizer.Observe(1, time.Minute)
	assert.Equal(t, 1, sizer.Size(), "never below the minimum")
}

func TestBatchSizerAdaptiveMonotonic(t *testing.T) {
	sizer := commit.NewBatchSizer(commit.SizerConfig{Adaptive: true, Max: 1000})
	for range 50 {
		sizer.Observe(sizer.Size(), time.Millisecond)
	}
	prev := sizer.Size()
	for _, total := range []time.Duration{
		11 * time.Second,
		15 * time.Second,
		20 * time.Second,
		100 * time.Second,
	} {
		sizer.Observe(sizer.Size(), total)
		if prev > 1 {
			assert.Less(t, sizer.Size(), prev)
		}
		prev = sizer.Size()
	}
}

func TestBatchSizerBounds(t *testing.T) {
	sizer := commit.NewBatchSizer(
		commit.SizerConfig{
			Adaptive: true,
			Min:      5,
			Max:      7,
		},
	)
	assert.Equal(t, 5, sizer.Size())
	for range 5 {
		sizer.Observe(sizer.Size(), time.Millisecond)
	}
	assert.Equal(t, 7, sizer.Size())
	sizer.Observe(7, time.Hour)
	assert.Equal(t, 5, sizer.Size())
}

func TestDecodeAddressTxInvalid(t *testing.T) {
	_, err := commit.DecodeAddressTx(bytes.Repeat([]byte{0xff}, 3))
	assert.Error(t, err)
}
