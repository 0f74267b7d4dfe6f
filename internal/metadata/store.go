// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metadata resolves metadata documents through the local cache, the
// remote cache and collection, honouring a per-call freshness bound.
package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/mediathek/internal/cache"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/remotecache"
	"github.com/ManuGH/mediathek/internal/telemetry"
)

const (
	tracerName = "mediathek/metadata"

	DefaultMaxFeedItems     = 15
	DefaultMaxBatchItems    = 15
	DefaultBatchConcurrency = 4
	DefaultCollectTimeout   = 60 * time.Second
)

// Collector is the subset of the collector the store drives. Every call
// reports failure as ok == false.
type Collector interface {
	ResolveURN(ctx context.Context, url string) (string, bool)
	CollectItem(ctx context.Context, urn string) (string, bool)
	CollectProgramFeed(ctx context.Context, urn string) (string, bool)
	CollectProgramList(ctx context.Context, publisherID string) (string, bool)
}

// Lookup is the result of Request.
type Lookup struct {
	Document string
	Source   Source
	// Fresh reports whether Document satisfies the requested max age. A
	// stale remote document is still returned so callers may show it.
	Fresh bool
}

// Options configures a Store.
type Options struct {
	Local     cache.Local
	Remote    remotecache.Backend
	Collector Collector

	MaxFeedItems     int
	MaxBatchItems    int
	BatchConcurrency int
	// CollectTimeout bounds shared collection work, which runs detached
	// from the caller that started it.
	CollectTimeout time.Duration

	Now    func() time.Time
	Logger zerolog.Logger
}

// Store is the metadata read path.
type Store struct {
	local     cache.Local
	remote    remotecache.Backend
	collector Collector
	sequencer *Sequencer

	maxFeedItems   int
	collectTimeout time.Duration
	now            func() time.Time
	logger         zerolog.Logger

	inflight singleflight.Group
	pending  sync.WaitGroup
}

// NewStore builds a Store. Nil tiers are replaced by disabled ones.
func NewStore(opts Options) *Store {
	if opts.Local == nil {
		opts.Local = cache.NewNoOp()
	}
	if opts.Remote == nil {
		opts.Remote = remotecache.NewNoop()
	}
	if opts.MaxFeedItems <= 0 {
		opts.MaxFeedItems = DefaultMaxFeedItems
	}
	if opts.MaxBatchItems <= 0 {
		opts.MaxBatchItems = DefaultMaxBatchItems
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = DefaultBatchConcurrency
	}
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = DefaultCollectTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		local:          opts.Local,
		remote:         opts.Remote,
		collector:      opts.Collector,
		maxFeedItems:   opts.MaxFeedItems,
		collectTimeout: opts.CollectTimeout,
		now:            opts.Now,
		logger:         opts.Logger,
	}
	s.sequencer = NewSequencer(s, opts.MaxBatchItems, opts.BatchConcurrency, opts.Logger)
	return s
}

// Sequencer returns the batch sequencer bound to this store.
func (s *Store) Sequencer() *Sequencer { return s.sequencer }

// Request looks urn up in the tiers allowed by strategy. It never collects.
//
// A local entry is used when maxAge > 0 and it is younger than maxAge;
// an older one is evicted. A remote document is always returned when found,
// with Fresh set when it is at most maxAge old, and is written through to
// the local cache stamped with its Last-Modified time.
func (s *Store) Request(ctx context.Context, urn string, maxAge time.Duration, strategy Strategy) (res Lookup) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "metadata.request",
		telemetry.LookupAttributes(urn, strategy.String(), maxAge)...)
	defer func() {
		span.SetAttributes(telemetry.ResultAttributes(res.Source.String(), res.Fresh)...)
		telemetry.EndSpan(span, nil)
	}()

	logger := xglog.WithContext(ctx, s.logger).With().
		Str(xglog.FieldURN, urn).
		Stringer(xglog.FieldStrategy, strategy).
		Logger()

	if strategy != StrategyOnlyCachedElseNilRemoteFirst {
		if l, ok := s.fromLocal(urn, maxAge); ok {
			logger.Debug().Msg("using local cache")
			return l
		}
	}

	if strategy == StrategyOnlyLocallyCachedElseNil {
		return Lookup{}
	}

	doc, lastModified, ok := s.remote.Fetch(ctx, urn)
	if ok {
		fresh := maxAge == MaxAgeInfinite || s.now().Sub(lastModified) <= maxAge
		s.local.Set(urn, doc, lastModified)
		s.reportLocalSize()
		logger.Debug().Bool("fresh", fresh).Time("last_modified", lastModified).Msg("using remote cache")
		return Lookup{Document: doc, Source: SourceRemoteCache, Fresh: fresh}
	}

	if strategy == StrategyOnlyCachedElseNilRemoteFirst {
		if l, ok := s.fromLocal(urn, maxAge); ok {
			logger.Debug().Msg("remote miss, using local cache")
			return l
		}
	}
	return Lookup{}
}

func (s *Store) fromLocal(urn string, maxAge time.Duration) (Lookup, bool) {
	entry, ok := s.local.Get(urn)
	if !ok {
		metrics.RecordCacheLookup("local", "miss")
		return Lookup{}, false
	}
	if maxAge <= 0 {
		metrics.RecordCacheLookup("local", "stale")
		return Lookup{}, false
	}
	if maxAge == MaxAgeInfinite || entry.Age(s.now()) < maxAge {
		metrics.RecordCacheLookup("local", "hit")
		return Lookup{Document: entry.Document, Source: SourceLocalCache, Fresh: true}, true
	}
	s.local.Delete(urn)
	s.reportLocalSize()
	metrics.RecordCacheLookup("local", "stale")
	return Lookup{}, false
}

// remember stores a freshly collected document locally and schedules the
// remote write-back.
func (s *Store) remember(ctx context.Context, urn, doc string) {
	s.local.Set(urn, doc, s.now())
	s.reportLocalSize()
	s.storeRemote(ctx, urn, doc)
}

func (s *Store) storeRemote(ctx context.Context, urn, doc string) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.remote.Store(ctx, urn, doc)
	}()
}

func (s *Store) reportLocalSize() {
	metrics.SetLocalCacheEntries(s.local.Stats().CurrentSize)
}

// detached returns a context for work shared by several callers.
func (s *Store) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.collectTimeout)
}

// coalesce runs fn once per key among concurrent callers.
func (s *Store) coalesce(kind, key string, fn func() (any, error)) (any, error) {
	v, err, shared := s.inflight.Do(kind+":"+key, fn)
	if shared {
		metrics.RecordCoalesced(kind)
	}
	return v, err
}

// Go runs fn in a tracked goroutine. Flush waits for it.
func (s *Store) Go(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn(ctx)
	}()
}

// Flush waits for pending write-backs and background work, or for ctx.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		s.sequencer.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
