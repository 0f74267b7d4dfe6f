// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the metadata pipeline, subscriptions and
// recommendations over a local HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediathek/internal/health"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/recommend"
	"github.com/ManuGH/mediathek/internal/subscriptions"
)

// MetadataService answers typed document requests.
type MetadataService interface {
	RequestItem(ctx context.Context, urlOrURN string, maxAge time.Duration, strategy metadata.Strategy) (*model.Item, metadata.Source)
	RequestProgramWithItems(ctx context.Context, u string, maxAge, maxItemAge time.Duration, strategy metadata.Strategy) (*model.Program, metadata.Source)
	RequestExplorePage(ctx context.Context, u string, strategy metadata.Strategy) (*model.ExplorePageContents, metadata.Source)
	RequestProgramList(ctx context.Context, publisherID string, maxAge time.Duration, strategy metadata.Strategy) ([]model.Program, metadata.Source)
}

// SubscriptionService manages followed programs.
type SubscriptionService interface {
	List(ctx context.Context) ([]subscriptions.Subscription, error)
	Add(ctx context.Context, program model.Program) (subscriptions.Subscription, error)
	Remove(ctx context.Context, id string) error
	RefreshByID(ctx context.Context, id string, maxAge time.Duration) (subscriptions.Subscription, *model.Program, error)
	MarkSeen(ctx context.Context, subscriptionID, itemID string, seen bool) (subscriptions.Subscription, error)
}

// RecommendationService reports usage and serves search suggestions.
type RecommendationService interface {
	Track(ctx context.Context, urnOrQuery string)
	Suggest(prefix string, limit int) []recommend.SearchRecommendation
}

// Config tunes the HTTP surface.
type Config struct {
	RatePerMinute  int
	TracingService string
	EnableMetrics  bool
}

// Server serves the HTTP API.
type Server struct {
	cfg           Config
	metadata      MetadataService
	subscriptions SubscriptionService
	recommend     RecommendationService
	health        *health.Manager
	logger        zerolog.Logger

	handler http.Handler
}

// ServerOption configures optional dependencies.
type ServerOption func(*Server)

// WithSubscriptions enables the subscription endpoints.
func WithSubscriptions(svc SubscriptionService) ServerOption {
	return func(s *Server) { s.subscriptions = svc }
}

// WithRecommendations enables tracking and suggestions.
func WithRecommendations(svc RecommendationService) ServerOption {
	return func(s *Server) { s.recommend = svc }
}

// WithHealth serves /healthz and /readyz from m.
func WithHealth(m *health.Manager) ServerOption {
	return func(s *Server) { s.health = m }
}

// WithLogger sets the base logger of the access log and handlers.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// New creates a server around the metadata service.
func New(cfg Config, md MetadataService, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		metadata: md,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// HTTPServer wraps the handler in an http.Server with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Program assembly may collect many items.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
}
