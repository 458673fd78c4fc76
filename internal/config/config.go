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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/numbat/database/plugin/metadata"
	"github.com/blinklabs-io/numbat/genesis"
)

type ctxKey string

const configContextKey ctxKey = "numbat.config"

const envPrefix = "numbat"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Start    StartConfig    `yaml:"start"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	// Addresses followed by a monitor daemon each
	MonitorAddresses []string      `yaml:"monitorAddresses" split_words:"true"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout"  split_words:"true"`
}

type NodeConfig struct {
	Host string `yaml:"host"`
	Port uint   `yaml:"port"`
	TLS  bool   `yaml:"tls"`
	// Node-to-node connections fetch block bodies with block-fetch
	NodeToNode bool   `yaml:"nodeToNode"    split_words:"true"`
	Network    string `yaml:"network"`
	Magic      uint32 `yaml:"magic"`
	// Path to a cardano-node config.json for networks without built-in
	// parameters
	CardanoConfig string `yaml:"cardanoConfig" split_words:"true"`
}

// StartConfig is the point a follower starts from without local state. A
// negative slot starts from the origin.
type StartConfig struct {
	Slot int64  `yaml:"slot"`
	Hash string `yaml:"hash"`
}

type SyncConfig struct {
	RawTransactions bool `yaml:"rawTransactions" split_words:"true"`
	// A non zero batch size disables adaptive sizing
	BatchSize      int           `yaml:"batchSize"      split_words:"true"`
	MinBatchSize   int           `yaml:"minBatchSize"   split_words:"true"`
	MaxBatchSize   int           `yaml:"maxBatchSize"   split_words:"true"`
	HighWater      time.Duration `yaml:"highWater"      split_words:"true"`
	LowWater       time.Duration `yaml:"lowWater"       split_words:"true"`
	WarnThreshold  time.Duration `yaml:"warnThreshold"  split_words:"true"`
	ReconnectDelay time.Duration `yaml:"reconnectDelay" split_words:"true"`
	RequestTimeout time.Duration `yaml:"requestTimeout" split_words:"true"`
	PipelineLimit  int           `yaml:"pipelineLimit"  split_words:"true"`
}

type DatabaseConfig struct {
	Backend string `yaml:"backend"`
	// Data directory of the sqlite and blob stores. Empty keeps sqlite in
	// memory.
	DataDir  string `yaml:"dataDir"  split_words:"true"`
	Dsn      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     uint   `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SslMode  string `yaml:"sslMode"  split_words:"true"`
	// Keep raw transactions in the badger blob store
	BlobEnabled bool `yaml:"blobEnabled" split_words:"true"`
	// Blob block cache size in bytes, zero for the default
	BlobCacheSize uint64 `yaml:"blobCacheSize" split_words:"true"`
}

type MetricsConfig struct {
	BindAddr string `yaml:"bindAddr" split_words:"true"`
	// Zero disables the metrics listener
	Port uint `yaml:"port"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Export spans to stdout instead of the OTLP HTTP endpoint
	Stdout bool `yaml:"stdout"`
}

func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Host:    "localhost",
			Port:    3001,
			Network: genesis.NetworkMainnet,
		},
		Start: StartConfig{
			Slot: -1,
		},
		Sync: SyncConfig{
			MinBatchSize:   1,
			MaxBatchSize:   1000,
			HighWater:      10 * time.Second,
			LowWater:       5 * time.Second,
			WarnThreshold:  time.Second,
			ReconnectDelay: 5 * time.Second,
			RequestTimeout: 30 * time.Second,
			PipelineLimit:  50,
		},
		Database: DatabaseConfig{
			Backend: metadata.BackendSqlite,
			DataDir: ".numbat",
		},
		Metrics: MetricsConfig{
			BindAddr: "0.0.0.0",
			Port:     12798,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// LoadConfig reads the YAML config file over the defaults, then applies
// NUMBAT_ environment variables. Without a file, ~/.numbat/numbat.yaml and
// /etc/numbat/numbat.yaml are tried.
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".numbat", "numbat.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/numbat/numbat.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// Validate reports inconsistent settings
func (c *Config) Validate() error {
	var errs []error
	if c.Node.Host == "" {
		errs = append(errs, errors.New("node host is required"))
	}
	if c.Node.Port == 0 || c.Node.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid node port: %d", c.Node.Port))
	}
	if c.Node.CardanoConfig == "" {
		if c.Node.Network == "" && c.Node.Magic == 0 {
			errs = append(errs, errors.New("network, magic or cardano config is required"))
		} else if c.Node.Network != "" {
			if _, ok := genesis.NetworkByName(c.Node.Network); !ok {
				errs = append(errs, fmt.Errorf("unknown network: %s", c.Node.Network))
			}
		}
	}
	if c.Start.Slot >= 0 && len(c.Start.Hash) != 64 {
		errs = append(errs, errors.New("start hash must be 32 bytes of hex when a start slot is set"))
	}
	s := c.Sync
	if s.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("invalid batch size: %d", s.BatchSize))
	}
	if s.BatchSize == 0 {
		if s.MinBatchSize < 1 || s.MaxBatchSize < s.MinBatchSize {
			errs = append(
				errs,
				fmt.Errorf(
					"invalid adaptive batch bounds: min %d, max %d",
					s.MinBatchSize,
					s.MaxBatchSize,
				),
			)
		}
		if s.LowWater >= s.HighWater {
			errs = append(errs, errors.New("sync low water must be below high water"))
		}
	}
	switch c.Database.Backend {
	case metadata.BackendSqlite:
	case metadata.BackendPostgres, metadata.BackendMysql:
		if c.Database.Dsn == "" && c.Database.Host == "" {
			errs = append(
				errs,
				fmt.Errorf("%s backend needs a dsn or host", c.Database.Backend),
			)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database backend: %s", c.Database.Backend))
	}
	if c.Database.BlobEnabled && c.Database.DataDir == "" {
		errs = append(errs, errors.New("blob store needs a data directory"))
	}
	seen := make(map[string]bool, len(c.MonitorAddresses))
	for _, addr := range c.MonitorAddresses {
		if !strings.HasPrefix(addr, "addr") {
			errs = append(errs, fmt.Errorf("monitor address is not a Shelley address: %s", addr))
		}
		if seen[addr] {
			errs = append(errs, fmt.Errorf("duplicate monitor address: %s", addr))
		}
		seen[addr] = true
	}
	return errors.Join(errs...)
}

// Adaptive reports whether the commit batch size follows commit durations
func (s SyncConfig) Adaptive() bool {
	return s.BatchSize == 0
}
