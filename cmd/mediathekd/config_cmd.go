// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"

	"github.com/ManuGH/mediathek/internal/config"
)

// runConfig prints the effective configuration, or strictly parses a file
// with "config check PATH".
func runConfig(cfg config.AppConfig, args []string, stdout io.Writer) error {
	switch {
	case len(args) == 0:
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(out)
		return err
	case len(args) == 2 && args[0] == "check":
		if _, err := config.LoadFileConfig(args[1]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(stdout, "%s: ok\n", args[1])
		return err
	default:
		return usageErrorf("config: expected no arguments or check PATH")
	}
}
