// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ManuGH/mediathek/internal/config"
)

// errCollectFailed is returned when the adapter reports failure.
var errCollectFailed = errors.New("adapter returned no result")

// runCollect calls the adapter directly, bypassing every cache tier, and
// prints the raw document.
func runCollect(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return usageErrorf("collect: expected KIND ARG")
	}
	kind, arg := args[0], args[1]

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.close(context.WithoutCancel(ctx)) }()

	var call func(context.Context, string) (string, bool)
	switch kind {
	case "resolve":
		call = p.collector.ResolveURN
	case "item":
		call = p.collector.CollectItem
	case "meta":
		call = p.collector.CollectProgramMeta
	case "feed":
		call = p.collector.CollectProgramFeed
	case "list":
		call = p.collector.CollectProgramList
	default:
		return usageErrorf("collect: unknown kind %q", kind)
	}

	doc, ok := call(ctx, arg)
	if !ok {
		return fmt.Errorf("collect %s %s: %w", kind, arg, errCollectFailed)
	}
	_, err = fmt.Fprintln(stdout, doc)
	return err
}
