// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package collector is the boundary to the scripted metadata adapter.
//
// The adapter is external code: it may return errors or panic. Collector
// turns every such failure into a plain miss and never caches anything.
package collector

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/telemetry"
	"github.com/rs/zerolog"
)

// Kinds reported in metrics and spans.
const (
	KindResolve     = "resolve"
	KindItem        = "item"
	KindProgramMeta = "program_meta"
	KindProgramFeed = "program_feed"
	KindProgramList = "program_list"
)

// Adapter is the set of entry points the metadata adapter exposes. Every
// call returns the adapter's canonical JSON document.
type Adapter interface {
	ResolveURN(ctx context.Context, url string) (string, error)
	CollectItem(ctx context.Context, urn string) (string, error)
	CollectProgramMeta(ctx context.Context, urn string) (string, error)
	CollectProgramFeed(ctx context.Context, urn string) (string, error)
	CollectProgramList(ctx context.Context, publisherID string) (string, error)
}

// Collector wraps an Adapter for the metadata store.
type Collector struct {
	adapter Adapter
	logger  zerolog.Logger
}

const tracerName = "mediathek/collector"

// New returns a Collector over adapter.
func New(adapter Adapter, logger zerolog.Logger) *Collector {
	return &Collector{
		adapter: adapter,
		logger:  logger,
	}
}

// ResolveURN maps a source URL to a URN. Input already starting with "urn:"
// is returned unchanged without calling the adapter.
func (c *Collector) ResolveURN(ctx context.Context, url string) (string, bool) {
	if strings.HasPrefix(url, "urn:") {
		return url, true
	}
	return c.call(ctx, KindResolve, url, c.adapter.ResolveURN)
}

// CollectItem returns the item document for urn.
func (c *Collector) CollectItem(ctx context.Context, urn string) (string, bool) {
	return c.call(ctx, KindItem, urn, c.adapter.CollectItem)
}

// CollectProgramMeta returns the program metadata document for urn.
func (c *Collector) CollectProgramMeta(ctx context.Context, urn string) (string, bool) {
	return c.call(ctx, KindProgramMeta, urn, c.adapter.CollectProgramMeta)
}

// CollectProgramFeed returns the feed document for the program urn.
func (c *Collector) CollectProgramFeed(ctx context.Context, urn string) (string, bool) {
	return c.call(ctx, KindProgramFeed, urn, c.adapter.CollectProgramFeed)
}

// CollectProgramList returns all programs of a publisher.
func (c *Collector) CollectProgramList(ctx context.Context, publisherID string) (string, bool) {
	return c.call(ctx, KindProgramList, publisherID, c.adapter.CollectProgramList)
}

func (c *Collector) call(ctx context.Context, kind, arg string, fn func(context.Context, string) (string, error)) (doc string, ok bool) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "collector."+kind,
		telemetry.CollectorAttributes(kind, arg)...)
	logger := xglog.WithContext(ctx, c.logger).With().
		Str(xglog.FieldKind, kind).
		Str(xglog.FieldURN, arg).
		Logger()
	start := time.Now()

	var err error
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			err = fmt.Errorf("adapter panic: %v", r)
			logger.Error().
				Str(xglog.FieldStack, string(debug.Stack())).
				Interface("panic", r).
				Msg("adapter panicked")
			doc, ok = "", false
		}
		if !ok && outcome == "success" {
			outcome = "failure"
		}
		metrics.RecordCollection(kind, outcome)
		if err != nil {
			span.SetAttributes(telemetry.ErrorAttributes(err, outcome)...)
		}
		telemetry.EndSpan(span, err)
		logger.Debug().
			Int64(xglog.FieldDurationMS, time.Since(start).Milliseconds()).
			Bool("ok", ok).
			Msg("collector call finished")
	}()

	doc, err = fn(ctx, arg)
	if err != nil {
		ev := logger.Error().Err(err)
		if st := stackOf(err); st != "" {
			ev = ev.Str(xglog.FieldStack, st)
		}
		ev.Msg("adapter call failed")
		return "", false
	}
	if doc == "" {
		logger.Warn().Msg("adapter returned an empty document")
		return "", false
	}
	return doc, true
}

// stacker is implemented by adapter errors that carry a script stack.
type stacker interface {
	Stack() string
}

func stackOf(err error) string {
	for err != nil {
		if s, ok := err.(stacker); ok {
			return s.Stack()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
