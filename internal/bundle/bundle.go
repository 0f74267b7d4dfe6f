// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bundle loads the downloadable configuration bundle: a JSON config
// block followed by the adapter script.
//
//	//config-json-start
//	const config = { "cachingServer": "cache.example.org" }
//	//config-json-end
//	function getMetadataForItem(cb, urn) { ... }
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	markerStart = "//config-json-start"
	markerEnd   = "//config-json-end"
)

// Well-known config keys.
const (
	KeyCachingServer        = "cachingServer"
	KeyRecommendationServer = "recommendationServer"
)

var (
	// ErrConfigBlockNotFound is returned when a marker is missing.
	ErrConfigBlockNotFound = errors.New("bundle: config block not found")
	// ErrMalformedConfig is returned when the config block is not a JSON object.
	ErrMalformedConfig = errors.New("bundle: malformed config")
)

// Bundle is a parsed configuration bundle.
type Bundle struct {
	Config map[string]any
	Script string
}

// Parse splits a bundle into its config object and script.
func Parse(s string) (*Bundle, error) {
	start := strings.Index(s, markerStart)
	end := strings.Index(s, markerEnd)
	if start < 0 || end < 0 || end < start {
		return nil, ErrConfigBlockNotFound
	}

	block := strings.TrimSpace(s[start+len(markerStart) : end])
	open := strings.Index(block, "{")
	closing := strings.LastIndex(block, "}")
	if open < 0 || closing < open {
		return nil, fmt.Errorf("%w: no JSON object in config block", ErrMalformedConfig)
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(block[open:closing+1]), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is not an object", ErrMalformedConfig)
	}

	return &Bundle{
		Config: cfg,
		Script: strings.TrimSpace(s[end+len(markerEnd):]),
	}, nil
}

// ConfigString returns the string value stored under key.
func (b *Bundle) ConfigString(key string) (string, bool) {
	if b == nil {
		return "", false
	}
	v, ok := b.Config[key].(string)
	return v, ok
}
