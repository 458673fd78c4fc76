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

// Package genesis provides the per-network chain constants needed while
// following the chain: the Shelley genesis hash that seeds the evolving
// nonce and the slot to epoch mapping.
package genesis

import (
	"fmt"
	"time"
)

const (
	NetworkMainnet = "mainnet"
	NetworkPreprod = "preprod"
	NetworkPreview = "preview"

	MagicMainnet uint32 = 764824073
	MagicPreprod uint32 = 1
	MagicPreview uint32 = 2
)

// Params holds the genesis values of a network
type Params struct {
	Network      string
	NetworkMagic uint32
	// ByronSecurityParam is k from the Byron genesis. A Byron epoch is 10k slots.
	ByronSecurityParam     uint64
	ByronSlotLengthMs      uint64
	ShelleyTransitionEpoch uint64
	ShelleyEpochLength     uint64
	ShelleySlotLengthMs    uint64
	SecurityParam          uint64
	ShelleyGenesisHash     string
	SystemStart            time.Time
}

var builtinNetworks = map[string]Params{
	NetworkMainnet: {
		Network:                NetworkMainnet,
		NetworkMagic:           MagicMainnet,
		ByronSecurityParam:     2160,
		ByronSlotLengthMs:      20000,
		ShelleyTransitionEpoch: 208,
		ShelleyEpochLength:     432000,
		ShelleySlotLengthMs:    1000,
		SecurityParam:          2160,
		ShelleyGenesisHash:     "1a3be38bcbb7911969283716ad7aa550250226b76a61fc51cc9a9a35d9276d81",
		SystemStart:            time.Date(2017, time.September, 23, 21, 44, 51, 0, time.UTC),
	},
	NetworkPreprod: {
		Network:                NetworkPreprod,
		NetworkMagic:           MagicPreprod,
		ByronSecurityParam:     2160,
		ByronSlotLengthMs:      20000,
		ShelleyTransitionEpoch: 4,
		ShelleyEpochLength:     432000,
		ShelleySlotLengthMs:    1000,
		SecurityParam:          2160,
		ShelleyGenesisHash:     "162d29c4e1cf6b8a84f2d692e67a3ac6bc7851bc3e6e4afe64d15778bed8bd86",
		SystemStart:            time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC),
	},
	NetworkPreview: {
		Network:                NetworkPreview,
		NetworkMagic:           MagicPreview,
		ByronSecurityParam:     432,
		ByronSlotLengthMs:      20000,
		ShelleyTransitionEpoch: 0,
		ShelleyEpochLength:     86400,
		ShelleySlotLengthMs:    1000,
		SecurityParam:          432,
		ShelleyGenesisHash:     "363498d1024f84bb39d3fa9593ce391483cb40d479b87233f868d6e57c3a400d",
		SystemStart:            time.Date(2022, time.October, 25, 0, 0, 0, 0, time.UTC),
	},
}

// NetworkByName returns the built-in parameters for a named network
func NetworkByName(name string) (Params, bool) {
	p, ok := builtinNetworks[name]
	return p, ok
}

// NetworkByMagic returns the built-in parameters for a network magic
func NetworkByMagic(magic uint32) (Params, bool) {
	for _, p := range builtinNetworks {
		if p.NetworkMagic == magic {
			return p, true
		}
	}
	return Params{}, false
}

// ShelleyTransitionEpoch returns the first Shelley epoch of a known network
func ShelleyTransitionEpoch(magic uint32) (uint64, error) {
	p, ok := NetworkByMagic(magic)
	if !ok {
		return 0, fmt.Errorf("unknown network magic: %d", magic)
	}
	return p.ShelleyTransitionEpoch, nil
}

// IsMainnet reports whether addresses should be rendered for mainnet
func (p *Params) IsMainnet() bool {
	return p.NetworkMagic == MagicMainnet
}

// ByronEpochLength is the number of slots in a Byron epoch
func (p *Params) ByronEpochLength() uint64 {
	return 10 * p.ByronSecurityParam
}

// ShelleyStartSlot is the first slot of the first Shelley epoch
func (p *Params) ShelleyStartSlot() uint64 {
	return p.ByronEpochLength() * p.ShelleyTransitionEpoch
}

// EpochForSlot maps an absolute slot to its epoch number
func (p *Params) EpochForSlot(slot uint64) uint64 {
	byronSlots := p.ShelleyStartSlot()
	if slot < byronSlots {
		if p.ByronEpochLength() == 0 {
			return 0
		}
		return slot / p.ByronEpochLength()
	}
	if p.ShelleyEpochLength == 0 {
		return p.ShelleyTransitionEpoch
	}
	return p.ShelleyTransitionEpoch + (slot-byronSlots)/p.ShelleyEpochLength
}

// FirstSlotOfEpoch returns the first slot of the epoch containing slot
func (p *Params) FirstSlotOfEpoch(slot uint64) uint64 {
	byronSlots := p.ShelleyStartSlot()
	if slot < byronSlots {
		return slot - slot%p.ByronEpochLength()
	}
	return slot - (slot-byronSlots)%p.ShelleyEpochLength
}

// SlotToTime returns the wall clock start of a slot
func (p *Params) SlotToTime(slot uint64) time.Time {
	byronSlots := p.ShelleyStartSlot()
	if slot < byronSlots {
		// #nosec G115
		return p.SystemStart.Add(
			time.Duration(slot*p.ByronSlotLengthMs) * time.Millisecond,
		)
	}
	// #nosec G115
	byronTime := time.Duration(byronSlots*p.ByronSlotLengthMs) * time.Millisecond
	// #nosec G115
	shelleyTime := time.Duration(
		(slot-byronSlots)*p.ShelleySlotLengthMs,
	) * time.Millisecond
	return p.SystemStart.Add(byronTime + shelleyTime)
}

func (p *Params) validate() error {
	if p.ByronSecurityParam == 0 {
		return fmt.Errorf("network %q: byron security parameter is zero", p.Network)
	}
	if p.ShelleyEpochLength == 0 {
		return fmt.Errorf("network %q: shelley epoch length is zero", p.Network)
	}
	if len(p.ShelleyGenesisHash) != 64 {
		return fmt.Errorf(
			"network %q: invalid shelley genesis hash %q",
			p.Network,
			p.ShelleyGenesisHash,
		)
	}
	return nil
}
