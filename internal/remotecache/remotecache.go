// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package remotecache implements the shared cache tier.
//
// Every failure is reported to the caller as a miss; errors are logged here
// and never returned.
package remotecache

import (
	"context"
	"time"
)

// Backend is the contract the metadata store relies on.
type Backend interface {
	// Fetch returns the document for urn and the time it was last written.
	Fetch(ctx context.Context, urn string) (doc string, lastModified time.Time, ok bool)
	// Store writes doc for urn. Failures are logged, never returned.
	Store(ctx context.Context, urn, doc string)
}

const (
	outcomeHit   = "hit"
	outcomeMiss  = "miss"
	outcomeError = "error"
	tierRemote   = "remote"
)

// noop disables the remote tier.
type noop struct{}

// NewNoop returns a backend that never hits and drops every write.
func NewNoop() Backend { return noop{} }

func (noop) Fetch(context.Context, string) (string, time.Time, bool) { return "", time.Time{}, false }
func (noop) Store(context.Context, string, string)                   {}
