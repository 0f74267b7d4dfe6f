// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/urn"
)

var errCollectFailed = errors.New("collection failed")

// RequestItem resolves urlOrURN to a URN and returns its item.
//
// A fresh cached document is decoded directly. Otherwise StrategyAll
// collects the item; the other strategies return the stale document when
// one was found, else nil.
func (s *Store) RequestItem(ctx context.Context, urlOrURN string, maxAge time.Duration, strategy Strategy) (*model.Item, Source) {
	logger := xglog.WithContext(ctx, s.logger)

	u, ok := s.resolve(ctx, urlOrURN)
	if !ok {
		logger.Info().Str(xglog.FieldURL, urlOrURN).Msg("no urn found")
		return nil, SourceNone
	}

	l := s.Request(ctx, u, maxAge, strategy)
	if l.Fresh || (strategy != StrategyAll && l.Document != "") {
		return decodeAs[model.Item](ctx, s.logger, u, l)
	}
	if strategy != StrategyAll {
		return nil, SourceNone
	}
	return s.collectItem(ctx, u)
}

func (s *Store) resolve(ctx context.Context, urlOrURN string) (string, bool) {
	if urn.IsURN(urlOrURN) {
		return urlOrURN, true
	}
	if s.collector == nil {
		return "", false
	}
	u, ok := s.collector.ResolveURN(ctx, urlOrURN)
	return u, ok && u != ""
}

func (s *Store) collectItem(ctx context.Context, u string) (*model.Item, Source) {
	if s.collector == nil {
		return nil, SourceNone
	}
	v, err := s.coalesce("item", u, func() (any, error) {
		ctx, cancel := s.detached(ctx)
		defer cancel()

		logger := xglog.WithContext(ctx, s.logger)
		logger.Debug().Str(xglog.FieldURN, u).Msg("collecting item")
		doc, ok := s.collector.CollectItem(ctx, u)
		if !ok {
			return nil, errCollectFailed
		}
		s.remember(ctx, u, doc)
		return doc, nil
	})
	if err != nil {
		return nil, SourceNone
	}
	return decodeAs[model.Item](ctx, s.logger, u, Lookup{Document: v.(string), Source: SourceCollect, Fresh: true})
}

// RequestProgramWithItems returns the program document for urn including
// its items. Under StrategyAll a missing or stale document triggers a full
// assembly from the program feed; items younger than maxItemAge are reused
// from the cached program.
func (s *Store) RequestProgramWithItems(ctx context.Context, u string, maxAge, maxItemAge time.Duration, strategy Strategy) (*model.Program, Source) {
	l := s.Request(ctx, u, maxAge, strategy)
	if l.Fresh || strategy != StrategyAll {
		if l.Document == "" {
			return nil, SourceNone
		}
		return decodeAs[model.Program](ctx, s.logger, u, l)
	}
	return s.assembleProgram(ctx, u, maxItemAge)
}

// RequestExplorePage returns a curated page. Explore pages are never
// collected; pass DefaultExploreStrategy unless the caller needs otherwise.
func (s *Store) RequestExplorePage(ctx context.Context, u string, strategy Strategy) (*model.ExplorePageContents, Source) {
	l := s.Request(ctx, u, MaxAgeInfinite, strategy)
	if l.Document == "" {
		return nil, SourceNone
	}
	return decodeAs[model.ExplorePageContents](ctx, s.logger, u, l)
}

// RequestProgramList returns every program of a publisher.
func (s *Store) RequestProgramList(ctx context.Context, publisherID string, maxAge time.Duration, strategy Strategy) ([]model.Program, Source) {
	u := urn.Programs(publisherID)

	l := s.Request(ctx, u, maxAge, strategy)
	if l.Fresh || (strategy != StrategyAll && l.Document != "") {
		list, src := decodeAs[[]model.Program](ctx, s.logger, u, l)
		if list == nil {
			return nil, src
		}
		return *list, src
	}
	if strategy != StrategyAll || s.collector == nil {
		return nil, SourceNone
	}

	v, err := s.coalesce("programs", publisherID, func() (any, error) {
		ctx, cancel := s.detached(ctx)
		defer cancel()

		logger := xglog.WithContext(ctx, s.logger)
		logger.Info().Str(xglog.FieldPublisher, publisherID).Msg("collecting program list")
		doc, ok := s.collector.CollectProgramList(ctx, publisherID)
		if !ok {
			return nil, errCollectFailed
		}
		s.remember(ctx, u, doc)
		return doc, nil
	})
	if err != nil {
		return nil, SourceNone
	}
	list, src := decodeAs[[]model.Program](ctx, s.logger, u, Lookup{Document: v.(string), Source: SourceCollect, Fresh: true})
	if list == nil {
		return nil, src
	}
	return *list, src
}

// requestProgramMetadata finds the program in its publisher's program list.
func (s *Store) requestProgramMetadata(ctx context.Context, programURN string) *model.Program {
	publisherID := urn.PublisherID(programURN)
	programID := urn.ID(programURN)

	list, _ := s.RequestProgramList(ctx, publisherID, MaxAgeInfinite, StrategyAll)
	for i := range list {
		if list[i].ID == programID {
			return &list[i]
		}
	}
	return nil
}

// decodeAs decodes l.Document. Undecodable documents are logged and
// reported as no result.
func decodeAs[T any](ctx context.Context, logger zerolog.Logger, u string, l Lookup) (*T, Source) {
	v, err := model.Decode[T](l.Document)
	if err != nil {
		dl := xglog.WithContext(ctx, logger)
		dl.Error().
			Err(err).
			Str(xglog.FieldURN, u).
			Stringer(xglog.FieldSource, l.Source).
			Msg("failed to decode metadata document")
		return nil, SourceNone
	}
	return &v, l.Source
}
