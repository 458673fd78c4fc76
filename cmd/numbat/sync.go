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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/numbat/internal/config"
	"github.com/blinklabs-io/numbat/internal/node"
)

func syncRun(cmd *cobra.Command, _ []string) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		slog.Error("no config found in context")
		os.Exit(1)
	}
	logger := commonRun()
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	if err := node.Run(signalCtx, cfg, logger); err != nil {
		slog.Error(err.Error())
		signalCtxStop()
		os.Exit(1)
	}
}

func syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Follow the chain and index it into the database (default)",
		Run:   syncRun,
	}
}
