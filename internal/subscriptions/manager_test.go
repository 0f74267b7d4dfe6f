// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package subscriptions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/model"
)

type programCall struct {
	urn      string
	maxAge   time.Duration
	strategy metadata.Strategy
}

type fakePrograms struct {
	mu       sync.Mutex
	programs map[string]*model.Program
	calls    []programCall
}

func (f *fakePrograms) RequestProgramWithItems(_ context.Context, u string, maxAge, _ time.Duration, strategy metadata.Strategy) (*model.Program, metadata.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, programCall{urn: u, maxAge: maxAge, strategy: strategy})
	p, ok := f.programs[u]
	if !ok {
		return nil, metadata.SourceNone
	}
	return p, metadata.SourceCollect
}

func (f *fakePrograms) callsFor(u string) []programCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []programCall
	for _, c := range f.calls {
		if c.urn == u {
			out = append(out, c)
		}
	}
	return out
}

type fakeRecommender struct {
	mu    sync.Mutex
	lists [][]string
}

func (f *fakeRecommender) ListsForSubscriptions(_ context.Context, urns []string) ([]model.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, urns)
	return nil, nil
}

func program(urn string, itemIDs ...string) *model.Program {
	p := &model.Program{URN: urn, ID: urn, Name: "Show " + urn}
	for _, id := range itemIDs {
		p.Items = append(p.Items, model.Item{ID: id})
	}
	return p
}

func newTestManager(t *testing.T) (*Manager, *fakePrograms, *fakeRecommender) {
	t.Helper()
	programs := &fakePrograms{programs: map[string]*model.Program{}}
	rec := &fakeRecommender{}
	m := NewManager(openTestStore(t), programs, rec, zerolog.Nop())
	t.Cleanup(m.Wait)
	return m, programs, rec
}

func TestManagerAdd(t *testing.T) {
	m, programs, rec := newTestManager(t)
	ctx := context.Background()

	p := program("urn:a", "1", "2", "3")
	p.Image = []model.ImageVariant{
		{URL: "wide", Width: model.Int(1600), Height: model.Int(900)},
		{URL: "square", Width: model.Int(500), Height: model.Int(480)},
		{URL: "unsized"},
	}
	programs.programs["urn:a"] = p

	sub, err := m.Add(ctx, *p)
	require.NoError(t, err)
	assert.Equal(t, "square", sub.ImageURL)
	assert.Equal(t, "Show urn:a", sub.Name)
	m.Wait()

	calls := programs.callsFor("urn:a")
	require.Len(t, calls, 1)
	assert.Equal(t, time.Duration(0), calls[0].maxAge)
	assert.Equal(t, metadata.StrategyAll, calls[0].strategy)

	got, err := m.Store().ByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnseenCount)

	rec.mu.Lock()
	assert.Equal(t, [][]string{{"urn:a"}}, rec.lists)
	rec.mu.Unlock()

	_, err = m.Add(ctx, *p)
	assert.ErrorIs(t, err, ErrExists)
}

func TestManagerAddRequiresURN(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Add(context.Background(), model.Program{ID: "x"})
	assert.Error(t, err)
}

func TestManagerAddNameFallsBackToID(t *testing.T) {
	m, _, _ := newTestManager(t)
	sub, err := m.Add(context.Background(), model.Program{URN: "urn:b", ID: "b-id"})
	require.NoError(t, err)
	assert.Equal(t, "b-id", sub.Name)
	assert.Empty(t, sub.ImageURL)
}

func TestManagerRemove(t *testing.T) {
	m, _, rec := newTestManager(t)
	ctx := context.Background()

	sub, err := m.Add(ctx, *program("urn:a"))
	require.NoError(t, err)
	m.Wait()

	require.NoError(t, m.Remove(ctx, sub.ID))
	m.Wait()
	assert.ErrorIs(t, m.Remove(ctx, sub.ID), ErrNotFound)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.lists, 2)
	assert.Empty(t, rec.lists[1])
}

func TestManagerRefreshUnavailable(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sub, err := m.Store().Insert(ctx, Subscription{Name: "gone", URN: "urn:gone"})
	require.NoError(t, err)

	p, err := m.Refresh(ctx, sub, 0)
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestManagerMarkSeenRecomputesUnseen(t *testing.T) {
	m, programs, _ := newTestManager(t)
	ctx := context.Background()

	programs.programs["urn:a"] = program("urn:a", "1", "2", "3")
	sub, err := m.Add(ctx, *programs.programs["urn:a"])
	require.NoError(t, err)
	m.Wait()

	got, err := m.MarkSeen(ctx, sub.ID, "2", true)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnseenCount)

	calls := programs.callsFor("urn:a")
	assert.Equal(t, metadata.StrategyOnlyCachedElseNil, calls[len(calls)-1].strategy)

	got, err = m.MarkSeen(ctx, sub.ID, "2", false)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnseenCount)

	_, err = m.MarkSeen(ctx, "missing", "1", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerUnseenIgnoresItemsNoLongerInFeed(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	sub, err := m.Store().Insert(ctx, Subscription{Name: "a", URN: "urn:a"})
	require.NoError(t, err)
	require.NoError(t, m.Store().SetSeen(ctx, sub.ID, "old", true))
	require.NoError(t, m.Store().SetSeen(ctx, sub.ID, "1", true))

	n, err := m.UnseenCount(ctx, sub.ID, program("urn:a", "1", "2"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.UnseenCount(ctx, sub.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManagerRefreshAll(t *testing.T) {
	m, programs, _ := newTestManager(t)
	ctx := context.Background()

	programs.programs["urn:a"] = program("urn:a", "1")
	_, err := m.Store().Insert(ctx, Subscription{Name: "a", URN: "urn:a"})
	require.NoError(t, err)
	_, err = m.Store().Insert(ctx, Subscription{Name: "b", URN: "urn:b"})
	require.NoError(t, err)

	err = m.RefreshAll(ctx, DefaultRefreshAllMaxAge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urn:b")

	calls := programs.callsFor("urn:a")
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultRefreshAllMaxAge, calls[0].maxAge)

	sub, err := m.Store().ByURN(ctx, "urn:a")
	require.NoError(t, err)
	assert.Equal(t, 1, sub.UnseenCount)
}

func TestManagerRefreshAllStopsOnCancel(t *testing.T) {
	m, programs, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Store().Insert(ctx, Subscription{Name: "a", URN: "urn:a"})
	require.NoError(t, err)
	cancel()

	err = m.RefreshAll(ctx, 0)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, programs.callsFor("urn:a"))
}

func TestManagerRefreshByID(t *testing.T) {
	m, programs, _ := newTestManager(t)
	ctx := context.Background()

	programs.programs["urn:a"] = program("urn:a", "1", "2")
	sub, err := m.Store().Insert(ctx, Subscription{Name: "a", URN: "urn:a"})
	require.NoError(t, err)

	got, p, err := m.RefreshByID(ctx, sub.ID, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, got.UnseenCount)

	_, _, err = m.RefreshByID(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
