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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStartHash = "5da6ba37a4a07df015c4ea92c880e3600d7f098b97e73816f8df04bbb5fad3b7"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "numbat.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0o600))
	return tmpFile
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.True(t, cfg.Sync.Adaptive())
	assert.Equal(t, int64(-1), cfg.Start.Slot)
}

func TestLoadFile(t *testing.T) {
	yamlContent := `
node:
  host: relay.example.com
  port: 3001
  tls: true
  nodeToNode: true
  network: preview
start:
  slot: 12345
  hash: ` + testStartHash + `
sync:
  rawTransactions: true
  batchSize: 50
  reconnectDelay: 2s
database:
  backend: postgres
  host: db.example.com
  port: 5432
  name: numbat
monitorAddresses:
  - addr_test1qz0
metrics:
  port: 9100
tracing:
  enabled: true
  stdout: true
shutdownTimeout: 1m
`
	cfg, err := LoadConfig(writeConfig(t, yamlContent))
	require.NoError(t, err)
	assert.Equal(t, "relay.example.com", cfg.Node.Host)
	assert.True(t, cfg.Node.TLS)
	assert.True(t, cfg.Node.NodeToNode)
	assert.Equal(t, "preview", cfg.Node.Network)
	assert.Equal(t, int64(12345), cfg.Start.Slot)
	assert.True(t, cfg.Sync.RawTransactions)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.False(t, cfg.Sync.Adaptive())
	assert.Equal(t, 2*time.Second, cfg.Sync.ReconnectDelay)
	// Unset values keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, "0.0.0.0", cfg.Metrics.BindAddr)
	assert.Equal(t, uint(9100), cfg.Metrics.Port)
	assert.Equal(t, "postgres", cfg.Database.Backend)
	assert.Equal(t, []string{"addr_test1qz0"}, cfg.MonitorAddresses)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, time.Minute, cfg.ShutdownTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NUMBAT_NODE_HOST", "env-host")
	t.Setenv("NUMBAT_NODE_PORT", "6000")
	t.Setenv("NUMBAT_SYNC_BATCH_SIZE", "10")
	t.Setenv("NUMBAT_MONITOR_ADDRESSES", "addr1a,addr1b")
	cfg, err := LoadConfig(writeConfig(t, "node:\n  host: file-host\n"))
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.Node.Host)
	assert.Equal(t, uint(6000), cfg.Node.Port)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, []string{"addr1a", "addr1b"}, cfg.MonitorAddresses)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	_, err = LoadConfig(writeConfig(t, "node: [\n"))
	require.Error(t, err)
	_, err = LoadConfig(writeConfig(t, "database:\n  backend: oracle\n"))
	require.ErrorContains(t, err, "unknown database backend")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"no host", func(c *Config) { c.Node.Host = "" }, "node host"},
		{"bad port", func(c *Config) { c.Node.Port = 70000 }, "invalid node port"},
		{"unknown network", func(c *Config) { c.Node.Network = "testnet42" }, "unknown network"},
		{"no network", func(c *Config) { c.Node.Network = "" }, "network, magic or cardano config"},
		{"magic only", func(c *Config) { c.Node.Network = ""; c.Node.Magic = 2 }, ""},
		{"start without hash", func(c *Config) { c.Start.Slot = 100 }, "start hash"},
		{"start", func(c *Config) { c.Start.Slot = 100; c.Start.Hash = testStartHash }, ""},
		{"negative batch", func(c *Config) { c.Sync.BatchSize = -1 }, "invalid batch size"},
		{"bad bounds", func(c *Config) { c.Sync.MinBatchSize = 10; c.Sync.MaxBatchSize = 5 }, "adaptive batch bounds"},
		{"bad water marks", func(c *Config) { c.Sync.LowWater = c.Sync.HighWater }, "low water"},
		{"fixed batch ignores bounds", func(c *Config) { c.Sync.BatchSize = 100; c.Sync.MinBatchSize = 0 }, ""},
		{"mysql without host", func(c *Config) { c.Database.Backend = "mysql" }, "needs a dsn or host"},
		{"blob without dir", func(c *Config) { c.Database.BlobEnabled = true; c.Database.DataDir = "" }, "blob store"},
		{"byron monitor", func(c *Config) { c.MonitorAddresses = []string{"Ae2tdPwUPEZ"} }, "not a Shelley address"},
		{"duplicate monitor", func(c *Config) { c.MonitorAddresses = []string{"addr1x", "addr1x"} }, "duplicate monitor"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.errMsg), err.Error())
		})
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
