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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultReconnectDelay = 5 * time.Second

// ErrFatal marks errors that a reconnect cannot fix
var ErrFatal = errors.New("fatal")

// Fatal wraps err so that the reconnect loop gives up on it
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// retryForever runs op until it succeeds, ctx is canceled or it returns a
// fatal error, waiting a fixed delay between attempts
func retryForever(
	ctx context.Context,
	logger *slog.Logger,
	delay time.Duration,
	op func(context.Context) error,
) error {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(delay), ctx)
	return backoff.RetryNotify(
		func() error {
			err := op(ctx)
			switch {
			case err == nil:
				return nil
			case ctx.Err() != nil:
				return backoff.Permanent(ctx.Err())
			case errors.Is(err, ErrFatal):
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, next time.Duration) {
			logger.Warn(
				fmt.Sprintf("%s, retrying in %s", err, next),
			)
		},
	)
}
