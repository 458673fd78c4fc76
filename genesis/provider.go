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

package genesis

import (
	"errors"
	"fmt"
	"sync"
)

// Provider resolves the network parameters once per process. Reconnects
// reuse the cached result.
type Provider struct {
	once           sync.Once
	network        string
	magic          uint32
	nodeConfigPath string
	params         Params
	err            error
}

// NewProvider returns a provider that loads parameters from the cardano-node
// config at nodeConfigPath when set, or from the built-in table by network
// name or magic otherwise
func NewProvider(network string, magic uint32, nodeConfigPath string) *Provider {
	return &Provider{
		network:        network,
		magic:          magic,
		nodeConfigPath: nodeConfigPath,
	}
}

// NewStaticProvider returns a provider for already known parameters
func NewStaticProvider(params Params) *Provider {
	p := &Provider{params: params}
	p.once.Do(func() {})
	return p
}

func (p *Provider) Params() (*Params, error) {
	p.once.Do(func() {
		p.params, p.err = p.load()
	})
	if p.err != nil {
		return nil, p.err
	}
	return &p.params, nil
}

func (p *Provider) load() (Params, error) {
	if p.nodeConfigPath != "" {
		cfg, err := NewCardanoNodeConfigFromFile(p.nodeConfigPath)
		if err != nil {
			return Params{}, fmt.Errorf("load cardano node config: %w", err)
		}
		ret, err := cfg.Params()
		if err != nil {
			return Params{}, err
		}
		if p.magic != 0 && ret.NetworkMagic != p.magic {
			return Params{}, fmt.Errorf(
				"network magic mismatch: configured %d, genesis %d",
				p.magic,
				ret.NetworkMagic,
			)
		}
		if ret.Network == "" {
			ret.Network = p.network
		}
		return ret, nil
	}
	if p.network != "" {
		ret, ok := NetworkByName(p.network)
		if !ok {
			return Params{}, fmt.Errorf("unknown network: %s", p.network)
		}
		if p.magic != 0 && ret.NetworkMagic != p.magic {
			return Params{}, fmt.Errorf(
				"network magic mismatch: configured %d, %s uses %d",
				p.magic,
				p.network,
				ret.NetworkMagic,
			)
		}
		return ret, nil
	}
	if p.magic != 0 {
		ret, ok := NetworkByMagic(p.magic)
		if !ok {
			return Params{}, fmt.Errorf(
				"unknown network magic %d: a cardano node config is required",
				p.magic,
			)
		}
		return ret, nil
	}
	return Params{}, errors.New("no network, magic or cardano node config specified")
}
