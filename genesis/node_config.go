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
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path"
	"path/filepath"

	"github.com/blinklabs-io/gouroboros/ledger/byron"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// CardanoNodeConfig represents the config.json/yaml file used by cardano-node.
type CardanoNodeConfig struct {
	byronGenesis               *byron.ByronGenesis
	shelleyGenesis             *shelley.ShelleyGenesis
	path                       string
	ByronGenesisFile           string  `yaml:"ByronGenesisFile"`
	ByronGenesisHash           string  `yaml:"ByronGenesisHash"`
	ShelleyGenesisFile         string  `yaml:"ShelleyGenesisFile"`
	ShelleyGenesisHash         string  `yaml:"ShelleyGenesisHash"`
	TestShelleyHardForkAtEpoch *uint64 `yaml:"TestShelleyHardForkAtEpoch"`
}

func NewCardanoNodeConfigFromReader(r io.Reader) (*CardanoNodeConfig, error) {
	var ret CardanoNodeConfig
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func NewCardanoNodeConfigFromFile(file string) (*CardanoNodeConfig, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := NewCardanoNodeConfigFromReader(f)
	if err != nil {
		return nil, err
	}
	c.path = path.Dir(file)
	if err := c.loadGenesisConfigs(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CardanoNodeConfig) genesisPath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return path.Join(c.path, file)
}

func (c *CardanoNodeConfig) loadGenesisConfigs() error {
	// Load Byron genesis
	if c.ByronGenesisFile != "" {
		byronGenesis, err := byron.NewByronGenesisFromFile(
			c.genesisPath(c.ByronGenesisFile),
		)
		if err != nil {
			return fmt.Errorf("load byron genesis: %w", err)
		}
		c.byronGenesis = &byronGenesis
	}
	// Load Shelley genesis
	if c.ShelleyGenesisFile != "" {
		genesisBytes, err := os.ReadFile(c.genesisPath(c.ShelleyGenesisFile))
		if err != nil {
			return fmt.Errorf("load shelley genesis: %w", err)
		}
		if err := c.LoadShelleyGenesisFromReader(bytes.NewReader(genesisBytes)); err != nil {
			return fmt.Errorf("load shelley genesis: %w", err)
		}
		// The Shelley genesis hash is the hash of the file as written
		if c.ShelleyGenesisHash == "" {
			hash := blake2b.Sum256(genesisBytes)
			c.ShelleyGenesisHash = hex.EncodeToString(hash[:])
		}
	}
	return nil
}

// ByronGenesis returns the Byron genesis config specified in the cardano-node config
func (c *CardanoNodeConfig) ByronGenesis() *byron.ByronGenesis {
	return c.byronGenesis
}

// LoadByronGenesisFromReader loads a Byron genesis config from an io.Reader
// This is useful mostly for tests
func (c *CardanoNodeConfig) LoadByronGenesisFromReader(r io.Reader) error {
	byronGenesis, err := byron.NewByronGenesisFromReader(r)
	if err != nil {
		return err
	}
	c.byronGenesis = &byronGenesis
	return nil
}

// ShelleyGenesis returns the Shelley genesis config specified in the cardano-node config
func (c *CardanoNodeConfig) ShelleyGenesis() *shelley.ShelleyGenesis {
	return c.shelleyGenesis
}

// LoadShelleyGenesisFromReader loads a Shelley genesis config from an io.Reader
// This is useful mostly for tests
func (c *CardanoNodeConfig) LoadShelleyGenesisFromReader(r io.Reader) error {
	shelleyGenesis, err := shelley.NewShelleyGenesisFromReader(r)
	if err != nil {
		return err
	}
	c.shelleyGenesis = &shelleyGenesis
	return nil
}

// Params derives the network parameters from the loaded genesis files
func (c *CardanoNodeConfig) Params() (Params, error) {
	byronGenesis := c.ByronGenesis()
	if byronGenesis == nil {
		return Params{}, errors.New("unable to get byron genesis")
	}
	shelleyGenesis := c.ShelleyGenesis()
	if shelleyGenesis == nil {
		return Params{}, errors.New("unable to get shelley genesis")
	}
	// These are known to be within uint range
	// #nosec G115
	ret := Params{
		NetworkMagic:        shelleyGenesis.NetworkMagic,
		ByronSecurityParam:  uint64(byronGenesis.ProtocolConsts.K),
		ByronSlotLengthMs:   uint64(byronGenesis.BlockVersionData.SlotDuration),
		ShelleyEpochLength:  uint64(shelleyGenesis.EpochLength),
		ShelleySlotLengthMs: slotLengthMs(shelleyGenesis),
		SecurityParam:       uint64(shelleyGenesis.SecurityParam),
		ShelleyGenesisHash:  c.ShelleyGenesisHash,
		SystemStart:         shelleyGenesis.SystemStart,
	}
	if known, ok := NetworkByMagic(ret.NetworkMagic); ok {
		ret.Network = known.Network
		ret.ShelleyTransitionEpoch = known.ShelleyTransitionEpoch
	}
	if c.TestShelleyHardForkAtEpoch != nil {
		ret.ShelleyTransitionEpoch = *c.TestShelleyHardForkAtEpoch
	}
	if err := ret.validate(); err != nil {
		return Params{}, err
	}
	return ret, nil
}

func slotLengthMs(shelleyGenesis *shelley.ShelleyGenesis) uint64 {
	return new(big.Int).Div(
		// Slot length ratio numerator times 1000 (seconds to milliseconds)
		new(big.Int).Mul(
			shelleyGenesis.SlotLength.Num(),
			big.NewInt(1_000),
		),
		// Divided by slot length ratio denominator
		shelleyGenesis.SlotLength.Denom(),
	).Uint64()
}
