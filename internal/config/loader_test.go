// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("MEDIATHEK_DATA_DIR", dataDir)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "bundle.js"), cfg.Bundle.Path)
	assert.Equal(t, filepath.Join(dataDir, "subscriptions.db"), cfg.Subscriptions.DBPath)
	assert.Equal(t, DefaultMaxFeedItems, cfg.Store.MaxFeedItems)
	assert.Equal(t, DefaultMaxBatchItems, cfg.Store.MaxBatchItems)
	assert.Equal(t, 8*time.Second, cfg.RemoteCache.Timeout)
	assert.Equal(t, "deflate", cfg.RemoteCache.Compression)
	assert.Equal(t, time.Hour, cfg.Subscriptions.RefreshInterval)
	assert.Equal(t, 30*time.Minute, cfg.Subscriptions.RefreshMaxAge)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
dataDir: `+dataDir+`
logLevel: debug
remoteCache:
  host: cache.example.org
  compression: none
  timeout: 3s
  redis:
    db: 2
store:
  maxFeedItems: 20
subscriptions:
  refreshInterval: 2h
telemetry:
  enabled: true
  exporter: http
  endpoint: otel:4318
  samplingRate: 0.25
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "cache.example.org", cfg.RemoteCache.Host)
	assert.Equal(t, "none", cfg.RemoteCache.Compression)
	assert.Equal(t, 3*time.Second, cfg.RemoteCache.Timeout)
	assert.Equal(t, 2, cfg.RemoteCache.Redis.DB)
	assert.Equal(t, "localhost:6379", cfg.RemoteCache.Redis.Addr, "unset nested keys keep defaults")
	assert.Equal(t, 20, cfg.Store.MaxFeedItems)
	assert.Equal(t, DefaultMaxBatchItems, cfg.Store.MaxBatchItems)
	assert.Equal(t, 2*time.Hour, cfg.Subscriptions.RefreshInterval)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.25, cfg.Telemetry.SamplingRate)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
dataDir: `+dataDir+`
remoteCache:
  host: from-file.example.org
store:
  batchConcurrency: 2
`)
	t.Setenv("MEDIATHEK_REMOTE_HOST", "from-env.example.org")
	t.Setenv("MEDIATHEK_BATCH_CONCURRENCY", "8")
	t.Setenv("MEDIATHEK_REFRESH_MAX_AGE", "45m")

	loader := NewLoader(path, "")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env.example.org", cfg.RemoteCache.Host)
	assert.Equal(t, 8, cfg.Store.BatchConcurrency)
	assert.Equal(t, 45*time.Minute, cfg.Subscriptions.RefreshMaxAge)
	assert.Contains(t, loader.ConsumedEnvKeys, "MEDIATHEK_REMOTE_HOST")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad backend", yaml: "remoteCache:\n  backend: memcached\n"},
		{name: "bad compression", yaml: "remoteCache:\n  compression: brotli\n"},
		{name: "zero feed items", yaml: "store:\n  maxFeedItems: 0\n"},
		{name: "bad log level", yaml: "logLevel: loud\n"},
		{name: "host with path", yaml: "remoteCache:\n  host: cache.example.org/keys\n"},
		{name: "tracing without endpoint", yaml: "telemetry:\n  enabled: true\n  endpoint: \"\"\n  exporter: kafka\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "dataDir: "+t.TempDir()+"\n"+tt.yaml)
			_, err := NewLoader(path, "").Load()
			assert.Error(t, err)
		})
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.RemoteCache.Redis.Password = "hunter2"

	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
	assert.Contains(t, string(out), "***")
}
