// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/mediathek/internal/bundle"
	"github.com/ManuGH/mediathek/internal/config"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/platform/httpx"
)

// runBundle manages the adapter bundle on disk.
func runBundle(ctx context.Context, cfg config.AppConfig, args []string, stdout io.Writer) error {
	if len(args) == 0 || len(args) > 2 || args[0] != "update" {
		return usageErrorf("bundle: expected update [URL]")
	}
	url := cfg.Bundle.URL
	if len(args) == 2 {
		url = args[1]
	}
	if url == "" {
		return usageErrorf("bundle: no URL given and none configured")
	}

	store := bundle.NewStore(bundle.Options{
		Path:       cfg.Bundle.Path,
		URL:        url,
		Timeout:    cfg.Bundle.Timeout,
		HTTPClient: bundleClient(cfg),
		Logger:     xglog.WithComponent("bundle"),
	})
	if err := store.Download(ctx, url); err != nil {
		return err
	}
	_, err := fmt.Fprintf(stdout, "bundle written to %s\n", store.Path())
	return err
}

func bundleClient(cfg config.AppConfig) *http.Client {
	return httpx.New(httpx.Options{Timeout: cfg.Bundle.Timeout, Operation: "bundle"})
}
