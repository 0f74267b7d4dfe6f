// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/urn"
)

type itemResponse struct {
	Item   *model.Item     `json:"item"`
	Source metadata.Source `json:"source"`
}

type programResponse struct {
	Program *model.Program  `json:"program"`
	Source  metadata.Source `json:"source"`
}

type exploreResponse struct {
	Page   *model.ExplorePageContents `json:"page"`
	Source metadata.Source            `json:"source"`
}

type programListResponse struct {
	Programs []model.Program `json:"programs"`
	Source   metadata.Source `json:"source"`
}

// lookupParams holds the common query parameters of lookups.
type lookupParams struct {
	maxAge     time.Duration
	maxItemAge time.Duration
	strategy   metadata.Strategy
}

func parseLookupParams(r *http.Request, defStrategy metadata.Strategy) (lookupParams, error) {
	q := r.URL.Query()
	var (
		p   lookupParams
		err error
	)
	if p.maxAge, err = metadata.ParseMaxAge(q.Get("maxAge"), metadata.MaxAgeInfinite); err != nil {
		return p, err
	}
	if p.maxItemAge, err = metadata.ParseMaxAge(q.Get("maxItemAge"), metadata.MaxAgeInfinite); err != nil {
		return p, err
	}
	if p.strategy, err = metadata.ParseStrategy(q.Get("strategy"), defStrategy); err != nil {
		return p, err
	}
	return p, nil
}

// parseURNParam validates the {urn} path parameter. want restricts the kind
// when non-empty.
func parseURNParam(r *http.Request, want urn.Kind) (urn.URN, error) {
	u, err := urn.Parse(chi.URLParam(r, "urn"))
	if err != nil {
		return urn.URN{}, err
	}
	if want != "" && u.Kind != want {
		return urn.URN{}, fmt.Errorf("%w: expected kind %s, got %s", urn.ErrMalformed, want, u.Kind)
	}
	return u, nil
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" {
		writeError(w, fmt.Errorf("missing ref"))
		return
	}
	if urn.IsURN(ref) {
		if _, err := urn.Parse(ref); err != nil {
			writeError(w, err)
			return
		}
	}
	p, err := parseLookupParams(r, metadata.StrategyAll)
	if err != nil {
		writeError(w, err)
		return
	}

	item, source := s.metadata.RequestItem(r.Context(), ref, p.maxAge, p.strategy)
	if item == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Item: item, Source: source})
}

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	u, err := parseURNParam(r, urn.KindProgram)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := parseLookupParams(r, metadata.StrategyAll)
	if err != nil {
		writeError(w, err)
		return
	}

	program, source := s.metadata.RequestProgramWithItems(r.Context(), u.String(), p.maxAge, p.maxItemAge, p.strategy)
	if program == nil {
		writeNotFound(w)
		return
	}
	logger := xglog.WithContext(r.Context(), s.logger)
	logger.Debug().
		Str(xglog.FieldURN, u.String()).
		Str(xglog.FieldSource, source.String()).
		Int("items", len(program.Items)).
		Msg("program served")
	writeJSON(w, http.StatusOK, programResponse{Program: program, Source: source})
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	u, err := parseURNParam(r, "")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := parseLookupParams(r, metadata.DefaultExploreStrategy)
	if err != nil {
		writeError(w, err)
		return
	}

	page, source := s.metadata.RequestExplorePage(r.Context(), u.String(), p.strategy)
	if page == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, exploreResponse{Page: page, Source: source})
}

func (s *Server) handleProgramList(w http.ResponseWriter, r *http.Request) {
	publisherID := strings.TrimSpace(chi.URLParam(r, "publisherID"))
	if publisherID == "" || strings.Contains(publisherID, ":") {
		writeError(w, fmt.Errorf("invalid publisher id %q", publisherID))
		return
	}
	p, err := parseLookupParams(r, metadata.StrategyAll)
	if err != nil {
		writeError(w, err)
		return
	}

	programs, source := s.metadata.RequestProgramList(r.Context(), publisherID, p.maxAge, p.strategy)
	if programs == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, programListResponse{Programs: programs, Source: source})
}
