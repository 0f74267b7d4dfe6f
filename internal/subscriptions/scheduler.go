// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package subscriptions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediathek/internal/log"
)

// Refresher refreshes all subscriptions.
type Refresher interface {
	RefreshAll(ctx context.Context, maxAge time.Duration) error
}

// Scheduler refreshes subscriptions periodically.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	maxAge    time.Duration
	logger    zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	busy   atomic.Bool
}

// NewScheduler creates a stopped scheduler. Non-positive values select the
// hourly interval and DefaultRefreshAllMaxAge.
func NewScheduler(refresher Refresher, interval, maxAge time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = DefaultRefreshAllMaxAge
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		maxAge:    maxAge,
		logger:    logger,
	}
}

// Start begins the refresh loop. It reports false when already running.
// With runNow the first refresh happens immediately.
func (s *Scheduler) Start(ctx context.Context, runNow bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.loop(ctx, runNow)
	}()
	s.logger.Info().Dur("interval", s.interval).Msg("subscription refresh scheduled")
	return true
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop ends the loop and waits for it to exit. Stopping a stopped scheduler
// is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, runNow bool) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if runNow {
		s.tryRun(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tryRun(ctx)
		}
	}
}

func (s *Scheduler) tryRun(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		return
	}
	defer s.busy.Store(false)

	ctx = xglog.ContextWithJobID(ctx, "refresh-"+uuid.NewString())
	logger := xglog.WithContext(ctx, s.logger)

	start := time.Now()
	if err := s.refresher.RefreshAll(ctx, s.maxAge); err != nil {
		logger.Warn().Err(err).Msg("scheduled subscription refresh incomplete")
		return
	}
	logger.Debug().Dur("took", time.Since(start)).Msg("scheduled subscription refresh done")
}
