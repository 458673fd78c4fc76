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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/numbat/database/plugin/metadata"
)

type testDaemon struct {
	name string
	run  func(ctx context.Context) error
}

func (d *testDaemon) Name() string {
	return d.name
}

func (d *testDaemon) Run(ctx context.Context) error {
	return d.run(ctx)
}

func waitForCancel(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSupervisorShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSupervisor(
		SupervisorConfig{},
		&testDaemon{name: "one", run: waitForCancel},
		&testDaemon{name: "two", run: waitForCancel},
	)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	errBoom := errors.New("boom")
	stopped := make(chan struct{})
	s := NewSupervisor(
		SupervisorConfig{},
		&testDaemon{
			name: "failing",
			run: func(context.Context) error {
				return Fatal(errBoom)
			},
		},
		&testDaemon{
			name: "healthy",
			run: func(ctx context.Context) error {
				defer close(stopped)
				return waitForCancel(ctx)
			},
		},
	)
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, ErrFatal)
	assert.Contains(t, err.Error(), "failing daemon")
	// The other daemons are canceled
	<-stopped
}

func TestSupervisorGraceDelay(t *testing.T) {
	defer goleak.VerifyNone(t)
	release := make(chan struct{})
	s := NewSupervisor(
		SupervisorConfig{GraceDelay: 50 * time.Millisecond},
		&testDaemon{
			name: "failing",
			run: func(context.Context) error {
				return errors.New("boom")
			},
		},
		&testDaemon{
			name: "stuck",
			run: func(context.Context) error {
				<-release
				return nil
			},
		},
	)
	start := time.Now()
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	close(release)
}

func TestSupervisorEmpty(t *testing.T) {
	require.Error(t, NewSupervisor(SupervisorConfig{}).Run(context.Background()))
}

func TestRetryForever(t *testing.T) {
	defer goleak.VerifyNone(t)
	logger := testLogger()
	attempts := 0
	err := retryForever(
		context.Background(),
		logger,
		time.Millisecond,
		func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("connection reset")
			}
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	errBad := errors.New("bad configuration")
	attempts = 0
	err = retryForever(
		context.Background(),
		logger,
		time.Millisecond,
		func(context.Context) error {
			attempts++
			return Fatal(errBad)
		},
	)
	require.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, attempts)
}

func TestRetryForeverCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := retryForever(
		ctx,
		testLogger(),
		5*time.Millisecond,
		func(context.Context) error {
			return errors.New("connection refused")
		},
	)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPointSource(t *testing.T) {
	source := pointSource(
		func() ([]metadata.ChainPoint, error) {
			return []metadata.ChainPoint{
				{Hash: "abcd", Height: 2, Slot: 20},
				{Hash: "0102", Height: 1, Slot: 10},
			}, nil
		},
	)
	points, err := source()
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, uint64(20), points[0].Slot)
	assert.Equal(t, []byte{0xab, 0xcd}, points[0].Hash)
	assert.Equal(t, []byte{0x01, 0x02}, points[1].Hash)

	source = pointSource(
		func() ([]metadata.ChainPoint, error) {
			return []metadata.ChainPoint{{Hash: "zz", Height: 1}}, nil
		},
	)
	_, err = source()
	require.Error(t, err)
}
