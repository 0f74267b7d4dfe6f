// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/mediathek/internal/compression"
	"github.com/ManuGH/mediathek/internal/validate"
)

// Validate checks a fully merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	if _, err := validate.ParseLogLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.AddError("logLevel", "must be one of debug, info, warn, error", cfg.LogLevel)
	}

	if cfg.Bundle.URL != "" {
		v.URL("bundle.url", cfg.Bundle.URL, []string{"http", "https"})
	}
	v.MinDuration("bundle.timeout", cfg.Bundle.Timeout, time.Second)

	v.OneOf("remoteCache.backend", cfg.RemoteCache.Backend,
		[]string{RemoteBackendHTTP, RemoteBackendRedis, RemoteBackendNone})
	if cfg.RemoteCache.Backend == RemoteBackendHTTP && cfg.RemoteCache.Host != "" {
		v.Host("remoteCache.host", cfg.RemoteCache.Host)
	}
	if cfg.RemoteCache.Backend == RemoteBackendRedis {
		v.NotEmpty("remoteCache.redis.addr", cfg.RemoteCache.Redis.Addr)
		v.Range("remoteCache.redis.db", cfg.RemoteCache.Redis.DB, 0, 15)
	}
	if _, err := compression.ByName(cfg.RemoteCache.Compression); err != nil {
		v.AddError("remoteCache.compression", err.Error(), cfg.RemoteCache.Compression)
	}
	v.MinDuration("remoteCache.timeout", cfg.RemoteCache.Timeout, 100*time.Millisecond)
	v.Positive("remoteCache.breakerThreshold", cfg.RemoteCache.BreakerThreshold)
	v.MinDuration("remoteCache.breakerReset", cfg.RemoteCache.BreakerReset, time.Second)

	v.MinDuration("collector.timeout", cfg.Collector.Timeout, time.Second)
	v.MinDuration("collector.httpTimeout", cfg.Collector.HTTPTimeout, 100*time.Millisecond)
	if cfg.Collector.RequestsPerSecond <= 0 {
		v.AddError("collector.requestsPerSecond", "must be positive", cfg.Collector.RequestsPerSecond)
	}
	v.Positive("collector.burst", cfg.Collector.Burst)
	v.Range("collector.concurrency", cfg.Collector.Concurrency, 1, 64)

	v.Range("store.maxFeedItems", cfg.Store.MaxFeedItems, 1, 200)
	v.Range("store.maxBatchItems", cfg.Store.MaxBatchItems, 1, 200)
	v.Range("store.batchConcurrency", cfg.Store.BatchConcurrency, 1, 64)

	v.NotEmpty("subscriptions.dbPath", cfg.Subscriptions.DBPath)
	v.MinDuration("subscriptions.refreshInterval", cfg.Subscriptions.RefreshInterval, time.Minute)
	v.MinDuration("subscriptions.refreshMaxAge", cfg.Subscriptions.RefreshMaxAge, 0)

	if cfg.Recommendations.Host != "" {
		v.Host("recommendations.host", cfg.Recommendations.Host)
	}

	v.NotEmpty("api.listenAddr", cfg.API.ListenAddr)
	v.Positive("api.ratePerMinute", cfg.API.RatePerMinute)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("telemetry.samplingRate", cfg.Telemetry.SamplingRate)
	}

	return v.Err()
}
