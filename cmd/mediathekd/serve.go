// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/mediathek/internal/api"
	"github.com/ManuGH/mediathek/internal/config"
	"github.com/ManuGH/mediathek/internal/health"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/subscriptions"
	"github.com/ManuGH/mediathek/internal/telemetry"
	"github.com/ManuGH/mediathek/internal/version"
)

const shutdownTimeout = 20 * time.Second

func runServe(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	subStore, err := subscriptions.Open(ctx, cfg.Subscriptions.DBPath, xglog.WithComponent("subscriptions"))
	if err != nil {
		return err
	}
	manager := subscriptions.NewManager(subStore, p.store, p.recommend, xglog.WithComponent("subscriptions"))
	scheduler := subscriptions.NewScheduler(manager, cfg.Subscriptions.RefreshInterval, cfg.Subscriptions.RefreshMaxAge, xglog.WithComponent("scheduler"))

	hm := health.NewManager(version.Version)
	for _, c := range p.checkers {
		hm.RegisterChecker(c)
	}
	hm.RegisterChecker(health.NewPingChecker("subscriptions_db", health.StatusUnhealthy, subStore.Ping))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.LogService + "-api"
	}
	server := api.New(api.Config{
		RatePerMinute:  cfg.API.RatePerMinute,
		TracingService: tracingService,
		EnableMetrics:  true,
	}, p.store,
		api.WithSubscriptions(manager),
		api.WithRecommendations(p.recommend),
		api.WithHealth(hm),
		api.WithLogger(xglog.WithComponent("api")),
	)
	httpServer := server.HTTPServer(cfg.API.ListenAddr)

	if cfg.Bundle.Watch {
		if err := p.bundles.StartWatcher(ctx); err != nil {
			logger.Warn().Err(err).Msg("bundle watcher not started")
		}
	}
	p.store.Go(ctx, func(ctx context.Context) {
		if err := p.recommend.LoadSearchQueries(ctx); err != nil {
			logger.Debug().Err(err).Msg("search suggestions unavailable")
		}
	})
	scheduler.Start(ctx, true)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("event", "startup").
			Str("version", version.Version).
			Str("addr", cfg.API.ListenAddr).
			Msg("starting mediathekd")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	scheduler.Stop()
	manager.Wait()
	if err := p.close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	p.bundles.Wait()
	if err := subStore.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	logger.Info().Msg("server exiting")
	return errors.Join(errs...)
}
