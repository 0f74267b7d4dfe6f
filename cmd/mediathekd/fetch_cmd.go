// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/mediathek/internal/config"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/urn"
)

// errNotAvailable is returned when no tier produced a document.
var errNotAvailable = errors.New("not available")

type fetchResult struct {
	Source metadata.Source `json:"source"`
	Value  any             `json:"value"`
}

// runFetch performs a single store lookup and prints it as JSON.
func runFetch(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	maxAgeFlag := fs.String("max-age", "inf", "maximum document age (Go duration or inf)")
	itemAgeFlag := fs.String("max-item-age", "inf", "maximum age of reused feed items")
	strategyFlag := fs.String("strategy", "", "all|cached|remote-first|local")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("fetch: %v", err)
	}
	if fs.NArg() != 2 {
		return usageErrorf("fetch: expected KIND REF")
	}
	kind, ref := fs.Arg(0), fs.Arg(1)

	maxAge, err := metadata.ParseMaxAge(*maxAgeFlag, metadata.MaxAgeInfinite)
	if err != nil {
		return usageErrorf("fetch: %v", err)
	}
	maxItemAge, err := metadata.ParseMaxAge(*itemAgeFlag, metadata.MaxAgeInfinite)
	if err != nil {
		return usageErrorf("fetch: %v", err)
	}
	defStrategy := metadata.StrategyAll
	if kind == "explore" {
		defStrategy = metadata.DefaultExploreStrategy
	}
	strategy, err := metadata.ParseStrategy(*strategyFlag, defStrategy)
	if err != nil {
		return usageErrorf("fetch: %v", err)
	}

	switch kind {
	case "item", "program", "explore", "programs":
	default:
		return usageErrorf("fetch: unknown kind %q", kind)
	}
	if kind != "programs" && urn.IsURN(ref) {
		if _, err := urn.Parse(ref); err != nil {
			return usageErrorf("fetch: %v", err)
		}
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	res := lookup(ctx, p.store, kind, ref, maxAge, maxItemAge, strategy)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	closeErr := p.close(closeCtx)

	if res.Value == nil {
		return errors.Join(fmt.Errorf("%s %s: %w", kind, ref, errNotAvailable), closeErr)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return errors.Join(err, closeErr)
	}
	return closeErr
}

func lookup(ctx context.Context, s *metadata.Store, kind, ref string, maxAge, maxItemAge time.Duration, strategy metadata.Strategy) fetchResult {
	switch kind {
	case "item":
		if v, src := s.RequestItem(ctx, ref, maxAge, strategy); v != nil {
			return fetchResult{Source: src, Value: v}
		}
	case "program":
		if v, src := s.RequestProgramWithItems(ctx, ref, maxAge, maxItemAge, strategy); v != nil {
			return fetchResult{Source: src, Value: v}
		}
	case "explore":
		if v, src := s.RequestExplorePage(ctx, ref, strategy); v != nil {
			return fetchResult{Source: src, Value: v}
		}
	case "programs":
		if v, src := s.RequestProgramList(ctx, ref, maxAge, strategy); v != nil {
			return fetchResult{Source: src, Value: v}
		}
	}
	return fetchResult{Source: metadata.SourceNone}
}
