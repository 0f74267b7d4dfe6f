// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediathek/internal/log"
)

// lookupFunc mirrors os.LookupEnv so tests can feed a fixed environment.
type lookupFunc func(key string) (string, bool)

// envReader resolves MEDIATHEK_* keys against a lookup function. Set but
// empty values keep the default unless the key is read with Clearable.
type envReader struct {
	lookup lookupFunc
	logger zerolog.Logger
}

func newEnvReader(lookup lookupFunc) envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envReader{lookup: lookup, logger: log.WithComponent("config")}
}

// isSecretKey reports whether the value of key must not appear in logs.
func isSecretKey(key string) bool {
	k := strings.ToUpper(key)
	return strings.HasSuffix(k, "PASSWORD") || strings.HasSuffix(k, "TOKEN") || strings.HasSuffix(k, "SECRET")
}

// read returns the parsed value of key, or def when the key is unset,
// empty or unparsable.
func read[T any](e envReader, key string, def T, parse func(string) (T, error)) T {
	raw, ok := e.lookup(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		e.logger.Warn().
			Str("key", key).
			Str("value", raw).
			Err(err).
			Msg("ignoring invalid environment value")
		return def
	}
	ev := e.logger.Debug().Str("key", key)
	if isSecretKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("using environment value")
	return v
}

func (e envReader) String(key, def string) string {
	return read(e, key, def, func(s string) (string, error) { return s, nil })
}

// Clearable is String except that a key set to the empty string yields ""
// so operators can switch a default off.
func (e envReader) Clearable(key, def string) string {
	if raw, ok := e.lookup(key); ok && raw == "" {
		e.logger.Debug().Str("key", key).Msg("environment value cleared")
		return ""
	}
	return e.String(key, def)
}

func (e envReader) Int(key string, def int) int {
	return read(e, key, def, strconv.Atoi)
}

func (e envReader) Float(key string, def float64) float64 {
	return read(e, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e envReader) Duration(key string, def time.Duration) time.Duration {
	return read(e, key, def, time.ParseDuration)
}

// Bool accepts true/false, 1/0 and yes/no in any case.
func (e envReader) Bool(key string, def bool) bool {
	return read(e, key, def, parseBool)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// ParseString reads key from the process environment, falling back to def.
func ParseString(key, def string) string {
	return newEnvReader(nil).String(key, def)
}

// expandEnv expands ${VAR} and $VAR references in file values.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
