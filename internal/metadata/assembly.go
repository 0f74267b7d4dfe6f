// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"context"
	"sort"
	"time"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/telemetry"
	"github.com/ManuGH/mediathek/internal/urn"
)

// assembleProgram rebuilds a program from its feed, reusing cached items
// that are still young enough and collecting the rest.
func (s *Store) assembleProgram(ctx context.Context, programURN string, maxItemAge time.Duration) (*model.Program, Source) {
	if s.collector == nil {
		return nil, SourceNone
	}
	v, err := s.coalesce("program", programURN, func() (any, error) {
		ctx, cancel := s.detached(ctx)
		defer cancel()
		p, ok := s.assemble(ctx, programURN, maxItemAge)
		if !ok {
			return nil, errCollectFailed
		}
		return p, nil
	})
	if err != nil {
		return nil, SourceNone
	}
	p := *v.(*model.Program)
	p.Items = append(make([]model.Item, 0, len(p.Items)), p.Items...)
	return &p, SourceCollect
}

func (s *Store) assemble(ctx context.Context, programURN string, maxItemAge time.Duration) (program *model.Program, ok bool) {
	start := time.Now()
	publisherID := urn.PublisherID(programURN)
	programID := urn.ID(programURN)

	ctx, span := telemetry.StartSpan(ctx, tracerName, "metadata.assemble_program")
	var hits, misses, feedLen int
	defer func() {
		span.SetAttributes(telemetry.AssemblyAttributes(publisherID, feedLen, hits, misses)...)
		telemetry.EndSpan(span, nil)
		metrics.ObserveProgramAssembly(time.Since(start))
	}()

	logger := xglog.WithContext(ctx, s.logger).With().
		Str(xglog.FieldURN, programURN).
		Str(xglog.FieldPublisher, publisherID).
		Logger()

	feedDoc, ok := s.collector.CollectProgramFeed(ctx, programURN)
	if !ok {
		logger.Error().Msg("failed to read program feed")
		return nil, false
	}
	feed, err := model.Decode[model.ProgramFeed](feedDoc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to parse program feed")
		return nil, false
	}
	feedCaptured := s.now()
	feedLen = len(feed.Items)
	logger.Info().Int(xglog.FieldFeedItems, feedLen).Msg("read program feed")

	cached, _ := s.RequestProgramWithItems(ctx, programURN, MaxAgeInfinite, MaxAgeInfinite, StrategyOnlyCachedElseNil)

	feedItems := feed.Items
	if len(feedItems) > s.maxFeedItems {
		feedItems = feedItems[:s.maxFeedItems]
	}

	items := make([]model.Item, 0, len(feedItems))
	var missURNs []string
	now := s.now()
	for _, fi := range feedItems {
		if hit, found := reusable(cached, fi.ID, now, maxItemAge); found {
			items = append(items, hit)
			continue
		}
		logger.Debug().Str("item_id", fi.ID).Dur(xglog.FieldMaxItemAge, maxItemAge).Msg("item cache miss")
		missURNs = append(missURNs, urn.Item(publisherID, fi.ID))
	}
	hits, misses = len(items), len(missURNs)

	collected := s.sequencer.Collect(ctx, missURNs, maxItemAge)
	items = append(items, collected...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].BroadcastsOrZero() > items[j].BroadcastsOrZero()
	})

	metrics.RecordAssemblyItems("reused", hits)
	metrics.RecordAssemblyItems("collected", len(collected))
	metrics.RecordAssemblyItems("dropped", misses-len(collected))

	program = &model.Program{
		URN:          programURN,
		ID:           programID,
		Name:         programID,
		Items:        items,
		FeedCaptured: model.Float64(model.UnixSeconds(feedCaptured)),
	}
	if meta := s.requestProgramMetadata(ctx, programURN); meta != nil {
		if meta.Name != "" {
			program.Name = meta.Name
		}
		program.Publisher = meta.Publisher
		program.Description = meta.Description
		program.Homepage = meta.Homepage
		program.Image = meta.Image
	} else {
		logger.Warn().Msg("program metadata not found, using id as name")
	}

	doc, err := model.Encode(program)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode program")
		return program, true
	}
	s.remember(ctx, programURN, doc)

	logger.Info().
		Int(xglog.FieldCacheHits, hits).
		Int(xglog.FieldCacheMisses, misses).
		Int("items", len(items)).
		Int64(xglog.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("program assembled")
	return program, true
}

// reusable returns the cached item with id when it is at most maxItemAge
// old. Items without a capture time count as captured now.
func reusable(cached *model.Program, id string, now time.Time, maxItemAge time.Duration) (model.Item, bool) {
	if cached == nil {
		return model.Item{}, false
	}
	for _, ci := range cached.Items {
		if ci.ID != id {
			continue
		}
		if maxItemAge == MaxAgeInfinite || now.Sub(ci.CapturedAt(now)) <= maxItemAge {
			return ci, true
		}
	}
	return model.Item{}, false
}
