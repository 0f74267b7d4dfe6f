// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/recommend"
	"github.com/ManuGH/mediathek/internal/subscriptions"
)

type metadataCall struct {
	ref        string
	maxAge     time.Duration
	maxItemAge time.Duration
	strategy   metadata.Strategy
}

type fakeMetadata struct {
	mu       sync.Mutex
	items    map[string]*model.Item
	programs map[string]*model.Program
	pages    map[string]*model.ExplorePageContents
	lists    map[string][]model.Program
	calls    []metadataCall
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		items:    map[string]*model.Item{},
		programs: map[string]*model.Program{},
		pages:    map[string]*model.ExplorePageContents{},
		lists:    map[string][]model.Program{},
	}
}

func (f *fakeMetadata) record(c metadataCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeMetadata) lastCall() metadataCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return metadataCall{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeMetadata) RequestItem(_ context.Context, ref string, maxAge time.Duration, strategy metadata.Strategy) (*model.Item, metadata.Source) {
	f.record(metadataCall{ref: ref, maxAge: maxAge, strategy: strategy})
	if it, ok := f.items[ref]; ok {
		return it, metadata.SourceLocalCache
	}
	return nil, metadata.SourceNone
}

func (f *fakeMetadata) RequestProgramWithItems(_ context.Context, u string, maxAge, maxItemAge time.Duration, strategy metadata.Strategy) (*model.Program, metadata.Source) {
	f.record(metadataCall{ref: u, maxAge: maxAge, maxItemAge: maxItemAge, strategy: strategy})
	if p, ok := f.programs[u]; ok {
		return p, metadata.SourceCollect
	}
	return nil, metadata.SourceNone
}

func (f *fakeMetadata) RequestExplorePage(_ context.Context, u string, strategy metadata.Strategy) (*model.ExplorePageContents, metadata.Source) {
	f.record(metadataCall{ref: u, strategy: strategy})
	if p, ok := f.pages[u]; ok {
		return p, metadata.SourceRemoteCache
	}
	return nil, metadata.SourceNone
}

func (f *fakeMetadata) RequestProgramList(_ context.Context, publisherID string, maxAge time.Duration, strategy metadata.Strategy) ([]model.Program, metadata.Source) {
	f.record(metadataCall{ref: publisherID, maxAge: maxAge, strategy: strategy})
	if l, ok := f.lists[publisherID]; ok {
		return l, metadata.SourceRemoteCache
	}
	return nil, metadata.SourceNone
}

type fakeSubscriptions struct {
	mu    sync.Mutex
	subs  map[string]subscriptions.Subscription
	seen  map[string]bool
	added []model.Program
	err   error
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{subs: map[string]subscriptions.Subscription{}, seen: map[string]bool{}}
}

func (f *fakeSubscriptions) List(context.Context) ([]subscriptions.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []subscriptions.Subscription{}
	for _, s := range f.subs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSubscriptions) Add(_ context.Context, p model.Program) (subscriptions.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.URN == p.URN {
			return subscriptions.Subscription{}, subscriptions.ErrExists
		}
	}
	f.added = append(f.added, p)
	sub := subscriptions.Subscription{ID: "sub-" + p.ID, Name: p.DisplayName(), URN: p.URN}
	f.subs[sub.ID] = sub
	return sub, nil
}

func (f *fakeSubscriptions) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return subscriptions.ErrNotFound
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeSubscriptions) RefreshByID(_ context.Context, id string, _ time.Duration) (subscriptions.Subscription, *model.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return subscriptions.Subscription{}, nil, subscriptions.ErrNotFound
	}
	if f.err != nil {
		return sub, nil, f.err
	}
	return sub, &model.Program{ID: sub.ID, URN: sub.URN}, nil
}

func (f *fakeSubscriptions) MarkSeen(_ context.Context, subID, itemID string, seen bool) (subscriptions.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[subID]
	if !ok {
		return subscriptions.Subscription{}, subscriptions.ErrNotFound
	}
	f.seen[itemID] = seen
	return sub, nil
}

type fakeRecommend struct {
	mu      sync.Mutex
	tracked []string
	queries []recommend.SearchRecommendation
}

func (f *fakeRecommend) Track(_ context.Context, ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, ref)
}

func (f *fakeRecommend) Suggest(prefix string, limit int) []recommend.SearchRecommendation {
	var out []recommend.SearchRecommendation
	for _, q := range f.queries {
		if len(out) >= limit {
			break
		}
		if prefix == "" || q.Query[:1] == prefix[:1] {
			out = append(out, q)
		}
	}
	return out
}
