// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxAgeInfinite accepts a cached document of any age.
const MaxAgeInfinite time.Duration = math.MaxInt64

// Strategy selects which tiers a request may use.
type Strategy int

const (
	// StrategyAll consults local, then remote, then collects.
	StrategyAll Strategy = iota
	// StrategyOnlyCachedElseNil consults local, then remote, and never collects.
	StrategyOnlyCachedElseNil
	// StrategyOnlyCachedElseNilRemoteFirst consults remote first and falls
	// back to local only when the remote tier misses.
	StrategyOnlyCachedElseNilRemoteFirst
	// StrategyOnlyLocallyCachedElseNil never leaves the process.
	StrategyOnlyLocallyCachedElseNil
)

// DefaultExploreStrategy is used for explore pages.
const DefaultExploreStrategy = StrategyOnlyCachedElseNilRemoteFirst

var strategyNames = map[Strategy]string{
	StrategyAll:                          "all",
	StrategyOnlyCachedElseNil:            "cached",
	StrategyOnlyCachedElseNilRemoteFirst: "remote-first",
	StrategyOnlyLocallyCachedElseNil:     "local",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts the names printed by String. The empty string
// yields def.
func ParseStrategy(name string, def Strategy) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return def, nil
	}
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return def, fmt.Errorf("unknown strategy %q", name)
}

// ParseMaxAge parses a Go duration or "inf". The empty string yields def.
func ParseMaxAge(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return def, nil
	case "inf", "infinite":
		return MaxAgeInfinite, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, fmt.Errorf("invalid max age %q: %w", s, err)
	}
	if d < 0 {
		return def, fmt.Errorf("invalid max age %q: negative", s)
	}
	return d, nil
}

// Source names the tier a document came from.
type Source int

const (
	SourceNone Source = iota
	SourceLocalCache
	SourceRemoteCache
	SourceCollect
)

func (s Source) String() string {
	switch s {
	case SourceLocalCache:
		return "local"
	case SourceRemoteCache:
		return "remote"
	case SourceCollect:
		return "collect"
	default:
		return "none"
	}
}

// MarshalText renders the source name in JSON responses.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
