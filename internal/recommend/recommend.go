// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recommend talks to the recommendation service and serves search
// suggestions.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metadata"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/model"
	"github.com/ManuGH/mediathek/internal/platform/httpx"
	pnet "github.com/ManuGH/mediathek/internal/platform/net"
	"github.com/ManuGH/mediathek/internal/urn"
)

// ErrHostNotConfigured is returned when no recommendation host is known.
var ErrHostNotConfigured = errors.New("recommendation host not configured")

// SearchRecommendation is a suggested search with the programs it points to.
type SearchRecommendation struct {
	Query    string   `json:"query"`
	Programs []string `json:"programs,omitempty"`
}

type queriesDocument struct {
	Queries []SearchRecommendation `json:"queries"`
}

// DocumentRequester is the metadata lookup used to fetch the query list.
type DocumentRequester interface {
	Request(ctx context.Context, urn string, maxAge time.Duration, strategy metadata.Strategy) metadata.Lookup
}

// Options configures a Service.
type Options struct {
	Host string
	// HostFunc is consulted when Host is empty.
	HostFunc   func() string
	HTTPClient *http.Client
	Timeout    time.Duration
	Documents  DocumentRequester
	Logger     zerolog.Logger
}

// Service posts usage counters and serves search suggestions.
type Service struct {
	host      string
	hostFunc  func() string
	http      *http.Client
	timeout   time.Duration
	documents DocumentRequester
	logger    zerolog.Logger

	mu      sync.RWMutex
	queries []SearchRecommendation
	pending sync.WaitGroup
}

// New returns a Service.
func New(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpx.New(httpx.Options{Timeout: opts.Timeout, Traced: true, Operation: "recommend"})
	}
	return &Service{
		host:      opts.Host,
		hostFunc:  opts.HostFunc,
		http:      opts.HTTPClient,
		timeout:   opts.Timeout,
		documents: opts.Documents,
		logger:    opts.Logger,
	}
}

func (s *Service) baseURL() string {
	host := s.host
	if host == "" && s.hostFunc != nil {
		host = s.hostFunc()
	}
	return pnet.BaseURL(host)
}

// Track records interest in a URN or search query. The request runs in the
// background; failures are logged at debug level.
func (s *Service) Track(ctx context.Context, urnOrQuery string) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if _, err := s.post(ctx, "/counters", map[string]any{"id": urnOrQuery}); err != nil {
			logger := xglog.WithContext(ctx, s.logger)
			logger.Debug().Err(err).Msg("failed to send recommendation data")
		}
	}()
}

// ListsForSubscriptions reports the subscribed URNs and returns the
// programs the service recommends, if it sent any.
func (s *Service) ListsForSubscriptions(ctx context.Context, urns []string) ([]model.Program, error) {
	if urns == nil {
		urns = []string{}
	}
	body, err := s.post(ctx, "/lists", map[string]any{"identifiers": urns})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	programs, err := model.Decode[[]model.Program](string(body))
	if err != nil {
		s.logger.Debug().Err(err).Msg("recommendation list response is not a program list")
		return nil, nil
	}
	return programs, nil
}

// Wait blocks until all background Track calls have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) post(ctx context.Context, path string, payload any) ([]byte, error) {
	endpoint := strings.TrimPrefix(path, "/")
	base := s.baseURL()
	if base == "" {
		metrics.RecordRecommendationPost(endpoint, "skipped")
		return nil, ErrHostNotConfigured
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		metrics.RecordRecommendationPost(endpoint, "failure")
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		metrics.RecordRecommendationPost(endpoint, "failure")
		return nil, fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	metrics.RecordRecommendationPost(endpoint, "success")
	return body, nil
}

// LoadSearchQueries refreshes the suggestion list, preferring the remote
// copy of the queries document.
func (s *Service) LoadSearchQueries(ctx context.Context) error {
	if s.documents == nil {
		return errors.New("no document source configured")
	}
	l := s.documents.Request(ctx, urn.RecommendationQueries, 0, metadata.StrategyOnlyCachedElseNilRemoteFirst)
	if l.Document == "" {
		return nil
	}
	doc, err := model.Decode[queriesDocument](l.Document)
	if err != nil {
		logger := xglog.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to decode search queries")
		return err
	}

	s.mu.Lock()
	s.queries = doc.Queries
	s.mu.Unlock()

	s.logger.Debug().Int("queries", len(doc.Queries)).Stringer(xglog.FieldSource, l.Source).Msg("loaded search queries")
	return nil
}

// Queries returns the loaded suggestions.
func (s *Service) Queries() []SearchRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SearchRecommendation(nil), s.queries...)
}

// Suggest returns up to limit suggestions whose query contains prefix,
// compared case-insensitively. Queries starting with prefix come first.
// A limit <= 0 returns all matches.
func (s *Service) Suggest(prefix string, limit int) []SearchRecommendation {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(prefix))

	type match struct {
		rec     SearchRecommendation
		atStart bool
	}
	var matches []match
	for _, q := range s.Queries() {
		folded := fold.String(q.Query)
		idx := strings.Index(folded, needle)
		if idx < 0 {
			continue
		}
		matches = append(matches, match{rec: q, atStart: idx == 0})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].atStart && !matches[j].atStart
	})

	out := make([]SearchRecommendation, 0, len(matches))
	for _, m := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.rec)
	}
	return out
}
