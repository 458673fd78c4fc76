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

package chainsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by all followers of a process and labeled by partition
type Metrics struct {
	state          *prometheus.GaugeVec
	blocksReceived *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	connects       *prometheus.CounterVec
	tipHeight      *prometheus.GaugeVec
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		state: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "numbat_chainsync_state",
				Help: "chain-sync state (0 disconnected, 1 connecting, 2 finding intersection, 3 catching up, 4 at tip)",
			},
			[]string{"partition"},
		),
		blocksReceived: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "numbat_chainsync_blocks_received_total",
				Help: "blocks received by roll-forward",
			},
			[]string{"partition"},
		),
		rollbacks: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "numbat_chainsync_rollbacks_total",
				Help: "roll-backward messages received",
			},
			[]string{"partition"},
		),
		connects: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "numbat_chainsync_connects_total",
				Help: "connection attempts",
			},
			[]string{"partition"},
		),
		tipHeight: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "numbat_chainsync_tip_height",
				Help: "block height of the remote chain tip",
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
