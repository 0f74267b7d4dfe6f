// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command mediathekd serves the metadata pipeline and offers one-shot
// lookup and maintenance subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/mediathek/internal/config"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/version"
)

const usage = `usage: mediathekd [-config path] [-version] [command]

commands:
  serve                                      run the daemon (default)
  fetch [-max-age d] [-strategy s] KIND REF  look up item|program|explore|programs
  collect KIND ARG                           call the adapter: resolve|item|meta|feed|list
  bundle update [URL]                        download and activate the adapter bundle
  config [check PATH]                        print the effective config or check a file
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mediathekd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Output:  stderr,
		Service: "mediathek",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	effectiveConfigPath := resolveConfigPath(*configPath)
	cfg, err := config.NewLoader(effectiveConfigPath, version.Version).Load()
	if err != nil {
		logger.Error().Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  stderr,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")
	if effectiveConfigPath != "" {
		logger.Debug().Str("event", "config.loaded").Str("path", effectiveConfigPath).Msg("loaded configuration from file")
	}

	rest := fs.Args()
	cmd := "serve"
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "serve":
		err = runServe(ctx, cfg)
	case "fetch":
		err = runFetch(ctx, cfg, rest, stdout)
	case "collect":
		err = runCollect(ctx, cfg, rest, stdout)
	case "bundle":
		err = runBundle(ctx, cfg, rest, stdout)
	case "config":
		err = runConfig(cfg, rest, stdout)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err != nil {
		if isUsageError(err) {
			_, _ = fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		logger.Error().Err(err).Str("command", cmd).Msg("command failed")
		return 1
	}
	return 0
}

// resolveConfigPath prefers an explicit path, then {dataDir}/config.yaml
// when it exists.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvPrefix+"DATA_DIR", config.Defaults().DataDir))
	auto := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}
