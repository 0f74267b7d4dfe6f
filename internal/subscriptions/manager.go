// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/model"
)

// DefaultRefreshAllMaxAge bounds how old a program may be before a bulk
// refresh collects it again.
const DefaultRefreshAllMaxAge = 30 * time.Minute

// preferredImageAspect is the aspect ratio of subscription artwork.
const preferredImageAspect = 1.0

// ProgramRequester loads programs with their items.
type ProgramRequester interface {
	RequestProgramWithItems(ctx context.Context, u string, maxAge, maxItemAge time.Duration, strategy metadata.Strategy) (*model.Program, metadata.Source)
}

// ListRecommender reports the current subscription list upstream.
type ListRecommender interface {
	ListsForSubscriptions(ctx context.Context, urns []string) ([]model.Program, error)
}

// Manager ties the subscription store to the metadata pipeline.
type Manager struct {
	store       *Store
	programs    ProgramRequester
	recommender ListRecommender
	logger      zerolog.Logger

	wg sync.WaitGroup
}

// NewManager creates a Manager. recommender may be nil.
func NewManager(store *Store, programs ProgramRequester, recommender ListRecommender, logger zerolog.Logger) *Manager {
	return &Manager{
		store:       store,
		programs:    programs,
		recommender: recommender,
		logger:      logger,
	}
}

// Store returns the underlying store.
func (m *Manager) Store() *Store { return m.store }

// List returns all subscriptions.
func (m *Manager) List(ctx context.Context) ([]Subscription, error) {
	return m.store.List(ctx)
}

// Add subscribes to program. The subscription list is reported upstream and
// the program is refreshed in the background.
func (m *Manager) Add(ctx context.Context, program model.Program) (Subscription, error) {
	if program.URN == "" {
		return Subscription{}, errors.New("subscriptions: program has no URN")
	}

	sub := Subscription{
		Name: program.DisplayName(),
		URN:  program.URN,
	}
	if img, ok := program.BestImage(preferredImageAspect); ok {
		sub.ImageURL = img.URL
	}

	sub, err := m.store.Insert(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	m.logger.Info().Str(xglog.FieldURN, sub.URN).Str(xglog.FieldSubscription, sub.ID).Msg("subscription added")

	m.background(ctx, func(ctx context.Context) {
		m.reportLists(ctx)
		if _, err := m.Refresh(ctx, sub, 0); err != nil {
			m.logger.Warn().Err(err).Str(xglog.FieldURN, sub.URN).Msg("initial subscription refresh failed")
		}
	})
	return sub, nil
}

// Remove deletes a subscription and its item states.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info().Str(xglog.FieldSubscription, id).Msg("subscription removed")
	m.background(ctx, m.reportLists)
	return nil
}

// Refresh loads the program of sub, collecting it when older than maxAge,
// and recomputes the unseen count.
func (m *Manager) Refresh(ctx context.Context, sub Subscription, maxAge time.Duration) (*model.Program, error) {
	program, _ := m.programs.RequestProgramWithItems(ctx, sub.URN, maxAge, metadata.MaxAgeInfinite, metadata.StrategyAll)
	if program == nil {
		metrics.RecordSubscriptionRefresh("failure")
		return nil, fmt.Errorf("refresh %s: program unavailable", sub.URN)
	}
	if _, err := m.updateUnseenCount(ctx, sub.ID, program); err != nil {
		metrics.RecordSubscriptionRefresh("failure")
		return program, err
	}
	metrics.RecordSubscriptionRefresh("success")
	return program, nil
}

// RefreshByID refreshes the subscription with id.
func (m *Manager) RefreshByID(ctx context.Context, id string, maxAge time.Duration) (Subscription, *model.Program, error) {
	sub, err := m.store.ByID(ctx, id)
	if err != nil {
		return Subscription{}, nil, err
	}
	program, err := m.Refresh(ctx, sub, maxAge)
	if err != nil {
		return sub, program, err
	}
	sub, err = m.store.ByID(ctx, id)
	return sub, program, err
}

// RefreshAll refreshes every subscription sequentially. Failures are logged
// and joined into the returned error.
func (m *Manager) RefreshAll(ctx context.Context, maxAge time.Duration) error {
	subs, err := m.store.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := m.Refresh(ctx, sub, maxAge); err != nil {
			m.logger.Warn().Err(err).Str(xglog.FieldURN, sub.URN).Msg("subscription refresh failed")
			errs = append(errs, err)
		}
	}
	m.logger.Debug().Int("count", len(subs)).Int("failed", len(errs)).Msg("subscriptions refreshed")
	return errors.Join(errs...)
}

// MarkSeen sets the seen state of an item and updates the unseen count from
// the cached program, if any.
func (m *Manager) MarkSeen(ctx context.Context, subscriptionID, itemID string, seen bool) (Subscription, error) {
	sub, err := m.store.ByID(ctx, subscriptionID)
	if err != nil {
		return Subscription{}, err
	}
	if err := m.store.SetSeen(ctx, sub.ID, itemID, seen); err != nil {
		return Subscription{}, err
	}

	program, _ := m.programs.RequestProgramWithItems(ctx, sub.URN, metadata.MaxAgeInfinite, metadata.MaxAgeInfinite, metadata.StrategyOnlyCachedElseNil)
	if program == nil {
		return sub, nil
	}
	n, err := m.updateUnseenCount(ctx, sub.ID, program)
	if err != nil {
		return Subscription{}, err
	}
	sub.UnseenCount = n
	return sub, nil
}

// UnseenCount returns how many items of program are not marked seen.
func (m *Manager) UnseenCount(ctx context.Context, subscriptionID string, program *model.Program) (int, error) {
	if program == nil || len(program.Items) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(program.Items))
	for _, item := range program.Items {
		ids = append(ids, item.ID)
	}
	seen, err := m.store.SeenItems(ctx, subscriptionID, ids)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if !seen[id] {
			n++
		}
	}
	return n, nil
}

func (m *Manager) updateUnseenCount(ctx context.Context, subscriptionID string, program *model.Program) (int, error) {
	n, err := m.UnseenCount(ctx, subscriptionID, program)
	if err != nil {
		return 0, err
	}
	if err := m.store.SetUnseenCount(ctx, subscriptionID, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Manager) reportLists(ctx context.Context) {
	if m.recommender == nil {
		return
	}
	urns, err := m.store.URNs(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to list subscription urns")
		return
	}
	if _, err := m.recommender.ListsForSubscriptions(ctx, urns); err != nil {
		m.logger.Debug().Err(err).Msg("subscription list report failed")
	}
}

func (m *Manager) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(ctx)
	}()
}

// Wait blocks until background work started by Add and Remove finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
