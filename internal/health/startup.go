// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediathek/internal/config"
	"github.com/ManuGH/mediathek/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.API.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.API.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid API listen address %q: %w", cfg.API.ListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid API listen port %q in %q", port, cfg.API.ListenAddr)
		}
	}

	if cfg.Bundle.URL != "" {
		if err := checkHTTPURL(cfg.Bundle.URL); err != nil {
			return fmt.Errorf("invalid bundle URL: %w", err)
		}
	} else {
		logger.Warn().Msg("no bundle URL configured; only a bundle on disk can be used")
	}

	switch cfg.RemoteCache.Backend {
	case config.RemoteBackendRedis:
		if _, _, err := net.SplitHostPort(cfg.RemoteCache.Redis.Addr); err != nil {
			return fmt.Errorf("invalid redis address %q: %w", cfg.RemoteCache.Redis.Addr, err)
		}
	case config.RemoteBackendHTTP:
		if cfg.RemoteCache.Host == "" {
			logger.Info().Msg("remote cache host taken from the bundle")
		}
	}

	if dbDir := filepath.Dir(cfg.Subscriptions.DBPath); cfg.Subscriptions.DBPath != "" {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return fmt.Errorf("subscription database directory %s: %w", dbDir, err)
		}
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
