// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metadata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediathek/internal/cache"
	"github.com/ManuGH/mediathek/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type remoteEntry struct {
	doc      string
	modified time.Time
}

// fakeRemote is an in-memory remote tier that counts its calls.
type fakeRemote struct {
	mu      sync.Mutex
	clock   *fakeClock
	entries map[string]remoteEntry
	fetches int
	stores  []string
}

func newFakeRemote(clock *fakeClock) *fakeRemote {
	return &fakeRemote{clock: clock, entries: map[string]remoteEntry{}}
}

func (r *fakeRemote) Fetch(_ context.Context, urn string) (string, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	e, ok := r.entries[urn]
	return e.doc, e.modified, ok
}

func (r *fakeRemote) Store(_ context.Context, urn, doc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = append(r.stores, urn)
	r.entries[urn] = remoteEntry{doc: doc, modified: r.clock.Now()}
}

func (r *fakeRemote) put(urn, doc string, modified time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[urn] = remoteEntry{doc: doc, modified: modified}
}

func (r *fakeRemote) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func (r *fakeRemote) storedURNs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stores...)
}

// fakeCollector serves canned documents and counts calls per argument.
type fakeCollector struct {
	mu       sync.Mutex
	urls     map[string]string
	items    map[string]string
	feeds    map[string]string
	lists    map[string]string
	calls    map[string]int
	gate     chan struct{} // when set, CollectItem blocks until closed
	entered  chan struct{}
	itemArgs []string
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		urls:  map[string]string{},
		items: map[string]string{},
		feeds: map[string]string{},
		lists: map[string]string{},
		calls: map[string]int{},
	}
}

func (c *fakeCollector) count(kind, arg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[kind+" "+arg]++
}

func (c *fakeCollector) callCount(kind, arg string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[kind+" "+arg]
}

func (c *fakeCollector) totalCalls(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, v := range c.calls {
		if len(k) > len(kind) && k[:len(kind)+1] == kind+" " {
			n += v
		}
	}
	return n
}

func (c *fakeCollector) lookup(m map[string]string, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := m[key]
	return v, ok
}

func (c *fakeCollector) ResolveURN(_ context.Context, url string) (string, bool) {
	c.count("resolve", url)
	return c.lookup(c.urls, url)
}

func (c *fakeCollector) CollectItem(ctx context.Context, urn string) (string, bool) {
	c.count("item", urn)
	c.mu.Lock()
	c.itemArgs = append(c.itemArgs, urn)
	gate, entered := c.gate, c.entered
	c.mu.Unlock()
	if gate != nil {
		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return "", false
		}
	}
	return c.lookup(c.items, urn)
}

func (c *fakeCollector) CollectProgramFeed(_ context.Context, urn string) (string, bool) {
	c.count("feed", urn)
	return c.lookup(c.feeds, urn)
}

func (c *fakeCollector) CollectProgramList(_ context.Context, publisherID string) (string, bool) {
	c.count("list", publisherID)
	return c.lookup(c.lists, publisherID)
}

type harness struct {
	clock     *fakeClock
	local     cache.Local
	remote    *fakeRemote
	collector *fakeCollector
	store     *Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := newFakeClock()
	h := &harness{
		clock:     clock,
		local:     cache.NewMemory(),
		remote:    newFakeRemote(clock),
		collector: newFakeCollector(),
	}
	h.store = NewStore(Options{
		Local:          h.local,
		Remote:         h.remote,
		Collector:      h.collector,
		CollectTimeout: 5 * time.Second,
		Now:            clock.Now,
		Logger:         zerolog.Nop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, h.store.Flush(ctx))
	})
	return h
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.store.Flush(ctx))
}

func mustEncode(t *testing.T, v any) string {
	t.Helper()
	doc, err := model.Encode(v)
	require.NoError(t, err)
	return doc
}
