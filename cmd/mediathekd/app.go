// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediathek/internal/adapter"
	"github.com/ManuGH/mediathek/internal/bundle"
	"github.com/ManuGH/mediathek/internal/cache"
	"github.com/ManuGH/mediathek/internal/collector"
	"github.com/ManuGH/mediathek/internal/compression"
	"github.com/ManuGH/mediathek/internal/config"
	"github.com/ManuGH/mediathek/internal/health"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/platform/httpx"
	"github.com/ManuGH/mediathek/internal/recommend"
	"github.com/ManuGH/mediathek/internal/remotecache"
	"github.com/ManuGH/mediathek/internal/resilience"
)

// pipeline is the wired read path shared by every subcommand.
type pipeline struct {
	cfg       config.AppConfig
	bundles   *bundle.Store
	runtime   *adapter.Runtime
	collector *collector.Collector
	remote    remotecache.Backend
	store     *metadata.Store
	recommend *recommend.Service
	checkers  []health.Checker
	closers   []func() error
}

// newPipeline wires bundle, adapter, caches and store. A missing bundle is
// downloaded when a URL is configured; failing that the pipeline still
// starts and every collection misses until a bundle arrives.
func newPipeline(ctx context.Context, cfg config.AppConfig) (*pipeline, error) {
	logger := xglog.WithComponent("pipeline")
	p := &pipeline{cfg: cfg}

	p.bundles = bundle.NewStore(bundle.Options{
		Path:       cfg.Bundle.Path,
		URL:        cfg.Bundle.URL,
		Timeout:    cfg.Bundle.Timeout,
		HTTPClient: httpx.New(httpx.Options{Timeout: cfg.Bundle.Timeout, Traced: true, Operation: "bundle"}),
		Logger:     xglog.WithComponent("bundle"),
	})

	p.runtime = adapter.New(adapter.Options{
		Timeout:           cfg.Collector.Timeout,
		HTTPTimeout:       cfg.Collector.HTTPTimeout,
		RequestsPerSecond: cfg.Collector.RequestsPerSecond,
		Burst:             cfg.Collector.Burst,
		Concurrency:       cfg.Collector.Concurrency,
		UserAgent:         cfg.Collector.UserAgent,
		Logger:            xglog.WithComponent("adapter"),
	})
	p.bundles.OnChange(func(b *bundle.Bundle) {
		if err := p.runtime.Load(b.Script); err != nil {
			logger.Error().Err(err).Msg("adapter script rejected; keeping previous script")
			return
		}
		logger.Info().Msg("adapter script loaded")
	})
	p.loadBundle(ctx, logger)
	p.collector = collector.New(p.runtime, xglog.WithComponent("collector"))

	remote, err := p.newRemote(ctx, logger)
	if err != nil {
		return nil, err
	}
	p.remote = remote

	p.store = metadata.NewStore(metadata.Options{
		Local:            cache.NewMemory(),
		Remote:           p.remote,
		Collector:        p.collector,
		MaxFeedItems:     cfg.Store.MaxFeedItems,
		MaxBatchItems:    cfg.Store.MaxBatchItems,
		BatchConcurrency: cfg.Store.BatchConcurrency,
		CollectTimeout:   cfg.Collector.Timeout,
		Logger:           xglog.WithComponent("metadata"),
	})

	p.recommend = recommend.New(recommend.Options{
		Host:      cfg.Recommendations.Host,
		HostFunc:  func() string { return p.bundles.ConfigString(bundle.KeyRecommendationServer) },
		Documents: p.store,
		Logger:    xglog.WithComponent("recommend"),
	})

	p.checkers = append(p.checkers, health.NewBundleChecker(p.runtime.Loaded))
	return p, nil
}

func (p *pipeline) loadBundle(ctx context.Context, logger zerolog.Logger) {
	err := p.bundles.Load()
	if err == nil {
		return
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str("path", p.bundles.Path()).Msg("bundle on disk unusable")
	}
	if p.cfg.Bundle.URL == "" {
		logger.Warn().Msg("no adapter bundle available; collections will miss")
		return
	}
	if err := p.bundles.Download(ctx, ""); err != nil {
		logger.Error().Err(err).Msg("bundle download failed; collections will miss")
	}
}

func (p *pipeline) newRemote(ctx context.Context, logger zerolog.Logger) (remotecache.Backend, error) {
	rc := p.cfg.RemoteCache
	scheme, err := compression.ByName(rc.Compression)
	if err != nil {
		return nil, fmt.Errorf("remote cache: %w", err)
	}

	switch rc.Backend {
	case config.RemoteBackendNone:
		return remotecache.NewNoop(), nil

	case config.RemoteBackendRedis:
		backend, err := remotecache.NewRedisBackend(ctx, remotecache.RedisConfig{
			Addr:     rc.Redis.Addr,
			Password: rc.Redis.Password,
			DB:       rc.Redis.DB,
			TTL:      rc.Redis.TTL,
		}, scheme, xglog.WithComponent("remotecache"))
		if err != nil {
			logger.Warn().Err(err).Str("addr", rc.Redis.Addr).Msg("redis unavailable; remote tier disabled")
			return remotecache.NewNoop(), nil
		}
		p.closers = append(p.closers, backend.Close)
		p.checkers = append(p.checkers, health.NewPingChecker("remote_cache", health.StatusDegraded, backend.HealthCheck))
		return backend, nil

	default:
		client := remotecache.NewClient(remotecache.Options{
			Host:     rc.Host,
			HostFunc: func() string { return p.bundles.ConfigString(bundle.KeyCachingServer) },
			Scheme:   scheme,
			Timeout:  rc.Timeout,
			Breaker:  resilience.NewCircuitBreaker("remote_cache", rc.BreakerThreshold, rc.BreakerReset),
			Logger:   xglog.WithComponent("remotecache"),
		})
		p.checkers = append(p.checkers, health.NewBreakerChecker("remote_cache", client.BreakerState))
		return client, nil
	}
}

// close flushes pending writes and releases backends.
func (p *pipeline) close(ctx context.Context) error {
	var errs []error
	p.recommend.Wait()
	if err := p.store.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
