// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultBundleURL       = "https://mediathek-static.it.wehlte.com/bundle.js"
	DefaultMaxFeedItems    = 15
	DefaultMaxBatchItems   = 15
	DefaultRefreshInterval = time.Hour
	DefaultRefreshMaxAge   = 30 * time.Minute
)

// Defaults returns the configuration used when neither file nor
// environment set a value.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:    "data",
		LogLevel:   "info",
		LogService: "mediathek",
		Bundle: BundleConfig{
			URL:     DefaultBundleURL,
			Timeout: 30 * time.Second,
		},
		RemoteCache: RemoteCacheConfig{
			Backend:          RemoteBackendHTTP,
			Compression:      "deflate",
			Timeout:          8 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Collector: CollectorConfig{
			Timeout:           60 * time.Second,
			HTTPTimeout:       15 * time.Second,
			RequestsPerSecond: 8,
			Burst:             4,
			Concurrency:       4,
			UserAgent:         "mediathek/1.0",
		},
		Store: StoreConfig{
			MaxFeedItems:     DefaultMaxFeedItems,
			MaxBatchItems:    DefaultMaxBatchItems,
			BatchConcurrency: 4,
		},
		Subscriptions: SubscriptionsConfig{
			RefreshInterval: DefaultRefreshInterval,
			RefreshMaxAge:   DefaultRefreshMaxAge,
		},
		API: APIConfig{
			ListenAddr:    "127.0.0.1:8088",
			RatePerMinute: 600,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}
