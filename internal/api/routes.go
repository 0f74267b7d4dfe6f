// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/mediathek/internal/api/middleware"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		Logger:         s.logger,
		EnableMetrics:  s.cfg.EnableMetrics,
		TracingService: s.cfg.TracingService,
		RatePerMinute:  s.cfg.RatePerMinute,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/items", s.handleItem)
		r.Get("/programs/{urn}", s.handleProgram)
		r.Get("/explore/{urn}", s.handleExplore)
		r.Get("/publishers/{publisherID}/programs", s.handleProgramList)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", s.handleListSubscriptions)
			r.Post("/", s.handleAddSubscription)
			r.Delete("/{id}", s.handleRemoveSubscription)
			r.With(middleware.CollectRateLimit()).Post("/{id}/refresh", s.handleRefreshSubscription)
			r.Put("/{id}/items/{itemID}/seen", s.handleMarkSeen)
		})

		r.Post("/track", s.handleTrack)
		r.Get("/suggestions", s.handleSuggestions)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	return r
}
