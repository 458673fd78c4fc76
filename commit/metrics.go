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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by the committers of a process and labeled by partition
type Metrics struct {
	batchSize       *prometheus.GaugeVec
	commitDuration  *prometheus.HistogramVec
	committedHeight *prometheus.GaugeVec
	blocksCommitted *prometheus.CounterVec
	commitFailures  *prometheus.CounterVec
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		batchSize: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "numbat_commit_batch_size",
				Help: "target number of blocks per commit",
			},
			[]string{"partition"},
		),
		commitDuration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "numbat_commit_duration_seconds",
				Help:    "wall clock time of a batch commit",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
			},
			[]string{"partition"},
		),
		committedHeight: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "numbat_commit_height",
				Help: "height of the last committed block",
			},
			[]string{"partition"},
		),
		blocksCommitted: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "numbat_commit_blocks_total",
				Help: "blocks committed",
			},
			[]string{"partition"},
		),
		commitFailures: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "numbat_commit_failures_total",
				Help: "batch commits that failed and were discarded",
			},
			[]string{"partition"},
		),
	}
}

func partitionLabel(partition string) string {
	if partition == "" {
		return "chain"
	}
	return partition
}
