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

// Package daemon runs the chain followers of the process and restarts them
// after transient failures.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const DefaultGraceDelay = 5 * time.Second

// Daemon is a long running follower. Run returns when ctx is canceled or on
// an error that retrying cannot fix.
type Daemon interface {
	Name() string
	Run(ctx context.Context) error
}

type SupervisorConfig struct {
	Logger *slog.Logger
	// GraceDelay bounds the wait for the remaining daemons after a failure
	GraceDelay time.Duration
}

type Supervisor struct {
	config  SupervisorConfig
	logger  *slog.Logger
	daemons []Daemon
}

type result struct {
	name string
	err  error
}

func NewSupervisor(cfg SupervisorConfig, daemons ...Daemon) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	return &Supervisor{
		config:  cfg,
		logger:  cfg.Logger.With("component", "daemon"),
		daemons: daemons,
	}
}

// Run starts every daemon and waits for them to stop. Cancellation of ctx
// is a clean shutdown and returns nil. The first daemon failure cancels the
// others and is returned once they stop, or after the grace delay.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.daemons) == 0 {
		return errors.New("daemon: nothing to supervise")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan result, len(s.daemons))
	for _, d := range s.daemons {
		s.logger.Info("starting " + d.Name() + " daemon")
		go func() {
			results <- result{name: d.Name(), err: d.Run(ctx)}
		}()
	}
	var failure error
	var grace <-chan time.Time
	for remaining := len(s.daemons); remaining > 0; {
		select {
		case r := <-results:
			remaining--
			if r.err == nil || errors.Is(r.err, context.Canceled) {
				s.logger.Info(r.name + " daemon stopped")
				continue
			}
			s.logger.Error(
				fmt.Sprintf("%s daemon failed: %s", r.name, r.err),
			)
			if failure == nil {
				failure = fmt.Errorf("%s daemon: %w", r.name, r.err)
				cancel()
				grace = time.After(s.config.GraceDelay)
			}
		case <-grace:
			s.logger.Warn(
				fmt.Sprintf("%d daemons still running after grace delay", remaining),
			)
			return failure
		}
	}
	return failure
}
