// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/subscriptions"
	"github.com/ManuGH/mediathek/internal/urn"
)

const maxBodyBytes = 64 << 10

type addSubscriptionRequest struct {
	URN string `json:"urn"`
}

type seenRequest struct {
	Seen *bool `json:"seen"`
}

type refreshResponse struct {
	Subscription subscriptions.Subscription `json:"subscription"`
	Program      *model.Program             `json:"program"`
}

type subscriptionListResponse struct {
	Subscriptions []subscriptions.Subscription `json:"subscriptions"`
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

// writeSubscriptionError maps store errors to status codes.
func (s *Server) writeSubscriptionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, subscriptions.ErrNotFound):
		writeNotFound(w)
	case errors.Is(err, subscriptions.ErrExists):
		writeConflict(w, err)
	default:
		logger := xglog.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("subscription operation failed")
		writeInternal(w)
	}
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		writeServiceUnavailable(w, errSubscriptionsDisabled)
		return
	}
	subs, err := s.subscriptions.List(r.Context())
	if err != nil {
		s.writeSubscriptionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionListResponse{Subscriptions: subs})
}

func (s *Server) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		writeServiceUnavailable(w, errSubscriptionsDisabled)
		return
	}
	var req addSubscriptionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := urn.Parse(req.URN)
	if err != nil {
		writeError(w, err)
		return
	}
	if u.Kind != urn.KindProgram {
		writeError(w, fmt.Errorf("%w: only programs can be subscribed", urn.ErrMalformed))
		return
	}

	program, _ := s.metadata.RequestProgramWithItems(r.Context(), u.String(), metadata.MaxAgeInfinite, metadata.MaxAgeInfinite, metadata.StrategyAll)
	if program == nil {
		writeNotFound(w)
		return
	}
	if program.URN == "" {
		program.URN = u.String()
	}

	sub, err := s.subscriptions.Add(r.Context(), *program)
	if err != nil {
		s.writeSubscriptionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		writeServiceUnavailable(w, errSubscriptionsDisabled)
		return
	}
	if err := s.subscriptions.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeSubscriptionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshSubscription(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		writeServiceUnavailable(w, errSubscriptionsDisabled)
		return
	}
	maxAge, err := metadata.ParseMaxAge(r.URL.Query().Get("maxAge"), 0)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, program, err := s.subscriptions.RefreshByID(r.Context(), chi.URLParam(r, "id"), maxAge)
	switch {
	case errors.Is(err, subscriptions.ErrNotFound):
		writeNotFound(w)
		return
	case err != nil && program == nil:
		writeBadGateway(w, err)
		return
	case err != nil:
		s.writeSubscriptionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Subscription: sub, Program: program})
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	if s.subscriptions == nil {
		writeServiceUnavailable(w, errSubscriptionsDisabled)
		return
	}
	var req seenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	seen := req.Seen == nil || *req.Seen

	sub, err := s.subscriptions.MarkSeen(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), seen)
	if err != nil {
		s.writeSubscriptionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
