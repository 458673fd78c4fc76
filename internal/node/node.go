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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/blinklabs-io/numbat/chainsync"
	"github.com/blinklabs-io/numbat/commit"
	"github.com/blinklabs-io/numbat/daemon"
	"github.com/blinklabs-io/numbat/database"
	"github.com/blinklabs-io/numbat/database/plugin/metadata"
	"github.com/blinklabs-io/numbat/event"
	"github.com/blinklabs-io/numbat/genesis"
	"github.com/blinklabs-io/numbat/internal/config"
)

const tracerName = "github.com/blinklabs-io/numbat"

// Run opens the database and runs the block daemon plus one daemon per
// monitored address until ctx is canceled or a daemon fails
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger = logger.With("component", "node")
	logger.Debug(fmt.Sprintf("config: %+v", redacted(cfg)))
	var shutdownFuncs []func(context.Context) error
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			cfg.ShutdownTimeout,
		)
		defer cancel()
		for i := len(shutdownFuncs) - 1; i >= 0; i-- {
			if err := shutdownFuncs[i](shutdownCtx); err != nil {
				logger.Error(fmt.Sprintf("shutdown: %s", err))
			}
		}
	}()
	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		shutdownFuncs = append(shutdownFuncs, shutdown)
	}
	promRegistry := prometheus.DefaultRegisterer
	if cfg.Metrics.Port > 0 {
		shutdownFuncs = append(
			shutdownFuncs,
			startMetricsServer(cfg.Metrics, logger),
		)
	}

	db, err := database.New(
		&database.Config{
			Logger:        logger,
			PromRegistry:  promRegistry,
			DataDir:       cfg.Database.DataDir,
			BlobEnabled:   cfg.Database.BlobEnabled,
			BlobCacheSize: cfg.Database.BlobCacheSize,
			Metadata: metadata.Config{
				Backend:  cfg.Database.Backend,
				Dsn:      cfg.Database.Dsn,
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				Database: cfg.Database.Name,
				SslMode:  cfg.Database.SslMode,
			},
		},
	)
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err != nil {
		var tsErr database.CommitTimestampError
		if !errors.As(err, &tsErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		// Raw transactions are rewritten when their blocks are replayed
		logger.Warn(
			"blob store out of step with metadata store, continuing",
			"error", err,
		)
	}
	shutdownFuncs = append(
		shutdownFuncs,
		func(context.Context) error { return db.Close() },
	)

	eventBus := event.NewEventBus(promRegistry, logger)
	shutdownFuncs = append(
		shutdownFuncs,
		func(context.Context) error {
			eventBus.Stop()
			return nil
		},
	)
	eventBus.SubscribeFunc(event.SyncStateEventType, func(evt event.Event) {
		data, ok := evt.Data.(event.SyncStateEvent)
		if !ok {
			return
		}
		logger.Info(
			fmt.Sprintf("sync state %s -> %s", data.From, data.To),
			"partition", data.Partition,
		)
	})

	daemons, err := newDaemons(cfg, logger, db, eventBus, promRegistry)
	if err != nil {
		return err
	}
	supervisor := daemon.NewSupervisor(
		daemon.SupervisorConfig{Logger: logger},
		daemons...,
	)
	if err := supervisor.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func newDaemons(
	cfg *config.Config,
	logger *slog.Logger,
	db *database.Database,
	eventBus *event.EventBus,
	promRegistry prometheus.Registerer,
) ([]daemon.Daemon, error) {
	res := daemon.Resources{
		Logger:   logger,
		DB:       db,
		EventBus: eventBus,
		Genesis: genesis.NewProvider(
			cfg.Node.Network,
			cfg.Node.Magic,
			cfg.Node.CardanoConfig,
		),
		Dialer: chainsync.NodeDialer{
			Host: cfg.Node.Host,
			Port: cfg.Node.Port,
			TLS:  cfg.Node.TLS,
		},
		ChainsyncMetrics: chainsync.NewMetrics(promRegistry),
		CommitMetrics:    commit.NewMetrics(promRegistry),
		Tracer:           otel.Tracer(tracerName),
	}
	syncCfg := daemon.SyncConfig{
		NodeToNode:     cfg.Node.NodeToNode,
		FallbackSlot:   cfg.Start.Slot,
		FallbackHash:   cfg.Start.Hash,
		RequestTimeout: cfg.Sync.RequestTimeout,
		PipelineLimit:  cfg.Sync.PipelineLimit,
		ReconnectDelay: cfg.Sync.ReconnectDelay,
		WarnThreshold:  cfg.Sync.WarnThreshold,
	}
	sizerCfg := commit.SizerConfig{
		Size:      cfg.Sync.BatchSize,
		Min:       cfg.Sync.MinBatchSize,
		Max:       cfg.Sync.MaxBatchSize,
		HighWater: cfg.Sync.HighWater,
		LowWater:  cfg.Sync.LowWater,
		Adaptive:  cfg.Sync.Adaptive(),
	}
	blockDaemon, err := daemon.NewBlockDaemon(
		daemon.BlockDaemonConfig{
			Resources:       res,
			Sync:            syncCfg,
			Sizer:           sizerCfg,
			RawTransactions: cfg.Sync.RawTransactions,
		},
	)
	if err != nil {
		return nil, err
	}
	ret := []daemon.Daemon{blockDaemon}
	for _, addr := range cfg.MonitorAddresses {
		monitor, err := daemon.NewMonitorAddressDaemon(
			daemon.MonitorAddressDaemonConfig{
				Resources: res,
				Sync:      syncCfg,
				Address:   addr,
				Sizer:     sizerCfg,
			},
		)
		if err != nil {
			return nil, err
		}
		ret = append(ret, monitor)
	}
	return ret, nil
}

func startMetricsServer(
	cfg config.MetricsConfig,
	logger *slog.Logger,
) func(context.Context) error {
	addr := net.JoinHostPort(cfg.BindAddr, strconv.FormatUint(uint64(cfg.Port), 10))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info("serving prometheus metrics on " + addr)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
			)
		}
	}()
	return metricsServer.Shutdown
}

// redacted returns a copy of cfg safe for logging
func redacted(cfg *config.Config) config.Config {
	ret := *cfg
	if ret.Database.Password != "" {
		ret.Database.Password = "********"
	}
	if ret.Database.Dsn != "" {
		ret.Database.Dsn = "********"
	}
	return ret
}
