// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mediathek/internal/model"
)

// ItemRequester resolves a single item.
type ItemRequester interface {
	RequestItem(ctx context.Context, urlOrURN string, maxAge time.Duration, strategy Strategy) (*model.Item, Source)
}

// Sequencer resolves batches of items with bounded fan-out.
type Sequencer struct {
	items       ItemRequester
	maxItems    int
	concurrency int
	logger      zerolog.Logger
	running     sync.WaitGroup
}

// NewSequencer returns a Sequencer resolving at most maxItems per batch
// with up to concurrency requests in flight.
func NewSequencer(items ItemRequester, maxItems, concurrency int, logger zerolog.Logger) *Sequencer {
	if maxItems <= 0 {
		maxItems = DefaultMaxBatchItems
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sequencer{items: items, maxItems: maxItems, concurrency: concurrency, logger: logger}
}

// Collect resolves the first maxItems urns with StrategyAll and returns
// the items that resolved, in input order. Failures are dropped.
func (q *Sequencer) Collect(ctx context.Context, urns []string, maxAge time.Duration) []model.Item {
	if len(urns) > q.maxItems {
		q.logger.Debug().Int("requested", len(urns)).Int("limit", q.maxItems).Msg("truncating batch")
		urns = urns[:q.maxItems]
	}
	if len(urns) == 0 {
		return []model.Item{}
	}

	results := make([]*model.Item, len(urns))
	var g errgroup.Group
	g.SetLimit(q.concurrency)
	for i, u := range urns {
		g.Go(func() error {
			results[i], _ = q.items.RequestItem(ctx, u, maxAge, StrategyAll)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Item, 0, len(urns))
	for _, it := range results {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

// Run collects in the background and calls done exactly once with the result.
func (q *Sequencer) Run(ctx context.Context, urns []string, maxAge time.Duration, done func([]model.Item)) {
	ctx = context.WithoutCancel(ctx)
	q.running.Add(1)
	go func() {
		defer q.running.Done()
		done(q.Collect(ctx, urns, maxAge))
	}()
}

// Wait blocks until every batch started by Run has delivered.
func (q *Sequencer) Wait() {
	q.running.Wait()
}
