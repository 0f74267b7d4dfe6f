// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment key read by the loader.
const EnvPrefix = "MEDIATHEK_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	env             envReader
	ConsumedEnvKeys map[string]struct{} // keys read during the last Load
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		env:             newEnvReader(nil),
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) consume(key string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

func (l *Loader) envString(key, defaultVal string) string {
	return l.env.String(l.consume(key), defaultVal)
}

func (l *Loader) envClearable(key, defaultVal string) string {
	return l.env.Clearable(l.consume(key), defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	return l.env.Bool(l.consume(key), defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	return l.env.Int(l.consume(key), defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	return l.env.Duration(l.consume(key), defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	return l.env.Float(l.consume(key), defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: parse file (strict) -> apply env -> derive paths -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Bundle.Path == "" {
		cfg.Bundle.Path = filepath.Join(cfg.DataDir, "bundle.js")
	}
	if cfg.Subscriptions.DBPath == "" {
		cfg.Subscriptions.DBPath = filepath.Join(cfg.DataDir, "subscriptions.db")
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	setString(&cfg.DataDir, expandEnv(f.DataDir))
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)

	if b := f.Bundle; b != nil {
		setString(&cfg.Bundle.URL, b.URL)
		setString(&cfg.Bundle.Path, expandEnv(b.Path))
		setPtr(&cfg.Bundle.Watch, b.Watch)
		setPtr(&cfg.Bundle.Timeout, b.Timeout)
	}
	if r := f.RemoteCache; r != nil {
		setString(&cfg.RemoteCache.Backend, r.Backend)
		setString(&cfg.RemoteCache.Host, r.Host)
		setString(&cfg.RemoteCache.Compression, r.Compression)
		setPtr(&cfg.RemoteCache.Timeout, r.Timeout)
		setPtr(&cfg.RemoteCache.BreakerThreshold, r.BreakerThreshold)
		setPtr(&cfg.RemoteCache.BreakerReset, r.BreakerReset)
		if rd := r.Redis; rd != nil {
			setString(&cfg.RemoteCache.Redis.Addr, rd.Addr)
			setString(&cfg.RemoteCache.Redis.Password, expandEnv(rd.Password))
			setPtr(&cfg.RemoteCache.Redis.DB, rd.DB)
			setPtr(&cfg.RemoteCache.Redis.TTL, rd.TTL)
		}
	}
	if c := f.Collector; c != nil {
		setPtr(&cfg.Collector.Timeout, c.Timeout)
		setPtr(&cfg.Collector.HTTPTimeout, c.HTTPTimeout)
		setPtr(&cfg.Collector.RequestsPerSecond, c.RequestsPerSecond)
		setPtr(&cfg.Collector.Burst, c.Burst)
		setPtr(&cfg.Collector.Concurrency, c.Concurrency)
		setString(&cfg.Collector.UserAgent, c.UserAgent)
	}
	if s := f.Store; s != nil {
		setPtr(&cfg.Store.MaxFeedItems, s.MaxFeedItems)
		setPtr(&cfg.Store.MaxBatchItems, s.MaxBatchItems)
		setPtr(&cfg.Store.BatchConcurrency, s.BatchConcurrency)
	}
	if s := f.Subscriptions; s != nil {
		setString(&cfg.Subscriptions.DBPath, expandEnv(s.DBPath))
		setPtr(&cfg.Subscriptions.RefreshInterval, s.RefreshInterval)
		setPtr(&cfg.Subscriptions.RefreshMaxAge, s.RefreshMaxAge)
	}
	if r := f.Recommendations; r != nil {
		setString(&cfg.Recommendations.Host, r.Host)
	}
	if a := f.API; a != nil {
		setString(&cfg.API.ListenAddr, a.ListenAddr)
		setPtr(&cfg.API.RatePerMinute, a.RatePerMinute)
	}
	if t := f.Telemetry; t != nil {
		setPtr(&cfg.Telemetry.Enabled, t.Enabled)
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setString(&cfg.Telemetry.Environment, t.Environment)
		setPtr(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	p := EnvPrefix
	cfg.DataDir = l.envString(p+"DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString(p+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString(p+"LOG_SERVICE", cfg.LogService)

	cfg.Bundle.URL = l.envClearable(p+"BUNDLE_URL", cfg.Bundle.URL)
	cfg.Bundle.Path = l.envString(p+"BUNDLE_PATH", cfg.Bundle.Path)
	cfg.Bundle.Watch = l.envBool(p+"BUNDLE_WATCH", cfg.Bundle.Watch)
	cfg.Bundle.Timeout = l.envDuration(p+"BUNDLE_TIMEOUT", cfg.Bundle.Timeout)

	cfg.RemoteCache.Backend = l.envString(p+"REMOTE_BACKEND", cfg.RemoteCache.Backend)
	cfg.RemoteCache.Host = l.envString(p+"REMOTE_HOST", cfg.RemoteCache.Host)
	cfg.RemoteCache.Compression = l.envString(p+"REMOTE_COMPRESSION", cfg.RemoteCache.Compression)
	cfg.RemoteCache.Timeout = l.envDuration(p+"REMOTE_TIMEOUT", cfg.RemoteCache.Timeout)
	cfg.RemoteCache.BreakerThreshold = l.envInt(p+"REMOTE_BREAKER_THRESHOLD", cfg.RemoteCache.BreakerThreshold)
	cfg.RemoteCache.BreakerReset = l.envDuration(p+"REMOTE_BREAKER_RESET", cfg.RemoteCache.BreakerReset)
	cfg.RemoteCache.Redis.Addr = l.envString(p+"REDIS_ADDR", cfg.RemoteCache.Redis.Addr)
	cfg.RemoteCache.Redis.Password = l.envString(p+"REDIS_PASSWORD", cfg.RemoteCache.Redis.Password)
	cfg.RemoteCache.Redis.DB = l.envInt(p+"REDIS_DB", cfg.RemoteCache.Redis.DB)
	cfg.RemoteCache.Redis.TTL = l.envDuration(p+"REDIS_TTL", cfg.RemoteCache.Redis.TTL)

	cfg.Collector.Timeout = l.envDuration(p+"COLLECTOR_TIMEOUT", cfg.Collector.Timeout)
	cfg.Collector.HTTPTimeout = l.envDuration(p+"COLLECTOR_HTTP_TIMEOUT", cfg.Collector.HTTPTimeout)
	cfg.Collector.RequestsPerSecond = l.envFloat(p+"COLLECTOR_RPS", cfg.Collector.RequestsPerSecond)
	cfg.Collector.Burst = l.envInt(p+"COLLECTOR_BURST", cfg.Collector.Burst)
	cfg.Collector.Concurrency = l.envInt(p+"COLLECTOR_CONCURRENCY", cfg.Collector.Concurrency)
	cfg.Collector.UserAgent = l.envString(p+"COLLECTOR_USER_AGENT", cfg.Collector.UserAgent)

	cfg.Store.MaxFeedItems = l.envInt(p+"MAX_FEED_ITEMS", cfg.Store.MaxFeedItems)
	cfg.Store.MaxBatchItems = l.envInt(p+"MAX_BATCH_ITEMS", cfg.Store.MaxBatchItems)
	cfg.Store.BatchConcurrency = l.envInt(p+"BATCH_CONCURRENCY", cfg.Store.BatchConcurrency)

	cfg.Subscriptions.DBPath = l.envString(p+"SUBSCRIPTIONS_DB", cfg.Subscriptions.DBPath)
	cfg.Subscriptions.RefreshInterval = l.envDuration(p+"REFRESH_INTERVAL", cfg.Subscriptions.RefreshInterval)
	cfg.Subscriptions.RefreshMaxAge = l.envDuration(p+"REFRESH_MAX_AGE", cfg.Subscriptions.RefreshMaxAge)

	cfg.Recommendations.Host = l.envString(p+"RECOMMENDATIONS_HOST", cfg.Recommendations.Host)

	cfg.API.ListenAddr = l.envString(p+"LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.RatePerMinute = l.envInt(p+"RATE_PER_MINUTE", cfg.API.RatePerMinute)

	cfg.Telemetry.Enabled = l.envBool(p+"TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(p+"TRACING_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(p+"TRACING_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString(p+"TRACING_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat(p+"TRACING_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
