// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/mediathek/internal/recommend"
)

const defaultSuggestionLimit = 10

type trackRequest struct {
	Ref string `json:"ref"`
}

type suggestionsResponse struct {
	Suggestions []recommend.SearchRecommendation `json:"suggestions"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.recommend == nil {
		writeServiceUnavailable(w, errRecommendationsDisabled)
		return
	}
	var req trackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		writeError(w, errors.New("missing ref"))
		return
	}
	s.recommend.Track(r.Context(), ref)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if s.recommend == nil {
		writeServiceUnavailable(w, errRecommendationsDisabled)
		return
	}
	limit := defaultSuggestionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	suggestions := s.recommend.Suggest(r.URL.Query().Get("q"), limit)
	if suggestions == nil {
		suggestions = []recommend.SearchRecommendation{}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: suggestions})
}
