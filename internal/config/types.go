// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Remote cache backends.
const (
	RemoteBackendHTTP  = "http"
	RemoteBackendRedis = "redis"
	RemoteBackendNone  = "none"
)

// AppConfig is the effective runtime configuration.
type AppConfig struct {
	Version    string
	DataDir    string
	LogLevel   string
	LogService string

	Bundle          BundleConfig
	RemoteCache     RemoteCacheConfig
	Collector       CollectorConfig
	Store           StoreConfig
	Subscriptions   SubscriptionsConfig
	Recommendations RecommendationsConfig
	API             APIConfig
	Telemetry       TelemetryConfig
}

// BundleConfig locates the adapter bundle.
type BundleConfig struct {
	URL     string
	Path    string // defaults to {dataDir}/bundle.js
	Watch   bool
	Timeout time.Duration
}

// RemoteCacheConfig configures the shared cache tier. An empty Host falls
// back to the bundle's cachingServer entry.
type RemoteCacheConfig struct {
	Backend          string
	Host             string
	Compression      string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
	Redis            RedisConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CollectorConfig tunes the scripted adapter.
type CollectorConfig struct {
	Timeout           time.Duration // per adapter call
	HTTPTimeout       time.Duration // per adapter HTTP request
	RequestsPerSecond float64
	Burst             int
	Concurrency       int // script VMs run in parallel
	UserAgent         string
}

// StoreConfig tunes the metadata store.
type StoreConfig struct {
	MaxFeedItems     int
	MaxBatchItems    int
	BatchConcurrency int
}

// SubscriptionsConfig configures the subscription database and refresh loop.
type SubscriptionsConfig struct {
	DBPath          string // defaults to {dataDir}/subscriptions.db
	RefreshInterval time.Duration
	RefreshMaxAge   time.Duration
}

// RecommendationsConfig locates the recommendation service. An empty Host
// falls back to the bundle's recommendationServer entry.
type RecommendationsConfig struct {
	Host string
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	ListenAddr    string
	RatePerMinute int
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	Environment  string
	SamplingRate float64
}

// FileConfig mirrors the YAML file. Pointer fields distinguish "unset" from
// zero values.
type FileConfig struct {
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Bundle          *FileBundle          `yaml:"bundle,omitempty"`
	RemoteCache     *FileRemoteCache     `yaml:"remoteCache,omitempty"`
	Collector       *FileCollector       `yaml:"collector,omitempty"`
	Store           *FileStore           `yaml:"store,omitempty"`
	Subscriptions   *FileSubscriptions   `yaml:"subscriptions,omitempty"`
	Recommendations *FileRecommendations `yaml:"recommendations,omitempty"`
	API             *FileAPI             `yaml:"api,omitempty"`
	Telemetry       *FileTelemetry       `yaml:"telemetry,omitempty"`
}

type FileBundle struct {
	URL     string         `yaml:"url,omitempty"`
	Path    string         `yaml:"path,omitempty"`
	Watch   *bool          `yaml:"watch,omitempty"`
	Timeout *time.Duration `yaml:"timeout,omitempty"`
}

type FileRemoteCache struct {
	Backend          string         `yaml:"backend,omitempty"`
	Host             string         `yaml:"host,omitempty"`
	Compression      string         `yaml:"compression,omitempty"`
	Timeout          *time.Duration `yaml:"timeout,omitempty"`
	BreakerThreshold *int           `yaml:"breakerThreshold,omitempty"`
	BreakerReset     *time.Duration `yaml:"breakerReset,omitempty"`
	Redis            *FileRedis     `yaml:"redis,omitempty"`
}

type FileRedis struct {
	Addr     string         `yaml:"addr,omitempty"`
	Password string         `yaml:"password,omitempty"`
	DB       *int           `yaml:"db,omitempty"`
	TTL      *time.Duration `yaml:"ttl,omitempty"`
}

type FileCollector struct {
	Timeout           *time.Duration `yaml:"timeout,omitempty"`
	HTTPTimeout       *time.Duration `yaml:"httpTimeout,omitempty"`
	RequestsPerSecond *float64       `yaml:"requestsPerSecond,omitempty"`
	Burst             *int           `yaml:"burst,omitempty"`
	Concurrency       *int           `yaml:"concurrency,omitempty"`
	UserAgent         string         `yaml:"userAgent,omitempty"`
}

type FileStore struct {
	MaxFeedItems     *int `yaml:"maxFeedItems,omitempty"`
	MaxBatchItems    *int `yaml:"maxBatchItems,omitempty"`
	BatchConcurrency *int `yaml:"batchConcurrency,omitempty"`
}

type FileSubscriptions struct {
	DBPath          string         `yaml:"dbPath,omitempty"`
	RefreshInterval *time.Duration `yaml:"refreshInterval,omitempty"`
	RefreshMaxAge   *time.Duration `yaml:"refreshMaxAge,omitempty"`
}

type FileRecommendations struct {
	Host string `yaml:"host,omitempty"`
}

type FileAPI struct {
	ListenAddr    string `yaml:"listenAddr,omitempty"`
	RatePerMinute *int   `yaml:"ratePerMinute,omitempty"`
}

type FileTelemetry struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
