// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package subscriptions

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ManuGH/mediathek/internal/log"
)

type countingRefresher struct {
	calls  atomic.Int32
	maxAge atomic.Int64
	jobID  atomic.Value
}

func (c *countingRefresher) RefreshAll(ctx context.Context, maxAge time.Duration) error {
	c.jobID.Store(xglog.JobIDFromContext(ctx))
	c.maxAge.Store(int64(maxAge))
	c.calls.Add(1)
	return nil
}

func TestSchedulerRunsPeriodically(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, 10*time.Millisecond, 0, zerolog.Nop())

	require.True(t, s.Start(context.Background(), false))
	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int64(DefaultRefreshAllMaxAge), r.maxAge.Load())
	assert.False(t, s.Running())
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, time.Hour, time.Minute, zerolog.Nop())

	require.True(t, s.Start(context.Background(), true))
	assert.False(t, s.Start(context.Background(), true))
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, int64(time.Minute), r.maxAge.Load())
}

func TestSchedulerRestart(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, time.Hour, 0, zerolog.Nop())

	require.True(t, s.Start(context.Background(), true))
	s.Stop()
	require.True(t, s.Start(context.Background(), true))
	assert.True(t, s.Running())
	s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopsWithParentContext(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, time.Hour, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, s.Start(ctx, false))
	cancel()
	s.Stop()
	assert.Zero(t, r.calls.Load())
}

func TestSchedulerTagsRunsWithJobID(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, time.Hour, 0, zerolog.Nop())

	require.True(t, s.Start(context.Background(), true))
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	jobID, _ := r.jobID.Load().(string)
	assert.True(t, strings.HasPrefix(jobID, "refresh-"), jobID)
}
