// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache provides the in-process metadata tier.
//
// Entries carry the time their document was captured; deciding whether an
// entry is still fresh is left to the caller because the acceptable age is
// chosen per request.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Entry is a cached metadata document.
type Entry struct {
	Document   string
	CapturedAt time.Time
}

// Age returns how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

// Local is a thread-safe document cache keyed by URN.
type Local interface {
	// Get returns the entry for urn regardless of its age.
	Get(urn string) (Entry, bool)
	// Set stores doc, replacing any previous entry.
	Set(urn, doc string, capturedAt time.Time)
	// Delete removes the entry for urn.
	Delete(urn string)
	// Clear removes all entries.
	Clear()
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits        int64 // Get calls that found an entry
	Misses      int64 // Get calls that found nothing
	Sets        int64
	Evictions   int64 // Delete calls that removed an entry
	CurrentSize int
}

// memoryCache is a map guarded by an RWMutex. It lives as long as the process.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// NewMemory creates an empty in-memory cache.
func NewMemory() Local {
	return &memoryCache{entries: make(map[string]Entry)}
}

func (c *memoryCache) Get(urn string) (Entry, bool) {
	c.mu.RLock()
	e, found := c.entries[urn]
	c.mu.RUnlock()

	if !found {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

func (c *memoryCache) Set(urn, doc string, capturedAt time.Time) {
	c.mu.Lock()
	c.entries[urn] = Entry{Document: doc, CapturedAt: capturedAt}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *memoryCache) Delete(urn string) {
	c.mu.Lock()
	_, found := c.entries[urn]
	delete(c.entries, urn)
	c.mu.Unlock()
	if found {
		c.evictions.Add(1)
	}
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// noOpCache disables the local tier.
type noOpCache struct{}

// NewNoOp creates a cache that doesn't cache anything.
func NewNoOp() Local {
	return noOpCache{}
}

func (noOpCache) Get(string) (Entry, bool)      { return Entry{}, false }
func (noOpCache) Set(string, string, time.Time) {}
func (noOpCache) Delete(string)                 {}
func (noOpCache) Clear()                        {}
func (noOpCache) Stats() Stats                  { return Stats{} }
