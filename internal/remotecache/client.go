// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/mediathek/internal/compression"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/platform/httpx"
	pnet "github.com/ManuGH/mediathek/internal/platform/net"
	"github.com/ManuGH/mediathek/internal/resilience"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 8 * time.Second
	maxResponseBytes = 32 << 20
	breakerName      = "remote_cache"
)

// ErrHostNotConfigured is logged when no remote host is known yet.
var ErrHostNotConfigured = errors.New("remote cache host not configured")

// Options configures a Client.
type Options struct {
	// Host is the cache host, e.g. "cache.example.org" or "http://127.0.0.1:9000".
	Host string
	// HostFunc is consulted when Host is empty. The adapter bundle publishes
	// the host after it has been loaded.
	HostFunc func() string
	// Scheme defaults to compression.Deflate.
	Scheme compression.Scheme
	// Timeout bounds every call; defaults to 8s.
	Timeout time.Duration
	// HTTPClient defaults to a hardened traced client.
	HTTPClient *http.Client
	// Breaker defaults to a breaker opening after 5 consecutive failures.
	Breaker *resilience.CircuitBreaker
	Logger  zerolog.Logger
}

// Client talks to the key/value HTTP cache at {base}/keys/{key}.
type Client struct {
	host     string
	hostFunc func() string
	scheme   compression.Scheme
	timeout  time.Duration
	http     *http.Client
	breaker  *resilience.CircuitBreaker
	logger   zerolog.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		host:     opts.Host,
		hostFunc: opts.HostFunc,
		scheme:   opts.Scheme,
		timeout:  opts.Timeout,
		http:     opts.HTTPClient,
		breaker:  opts.Breaker,
		logger:   opts.Logger,
	}
	if c.scheme == nil {
		c.scheme = compression.Deflate
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.http == nil {
		c.http = httpx.New(httpx.Options{Timeout: c.timeout, Traced: true, Operation: "remotecache"})
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(breakerName, 5, 30*time.Second)
	}
	return c
}

// URL returns the resource URL for urn, or "" when no host is known.
func (c *Client) URL(urn string) string {
	base := pnet.BaseURL(c.currentHost())
	if base == "" {
		return ""
	}
	return base + "/keys/" + KeyFor(urn, c.scheme)
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) currentHost() string {
	if c.host != "" {
		return c.host
	}
	if c.hostFunc != nil {
		return c.hostFunc()
	}
	return ""
}

type fetchResult struct {
	status       int
	body         []byte
	lastModified string
}

// Fetch implements Backend.
func (c *Client) Fetch(ctx context.Context, urn string) (string, time.Time, bool) {
	logger := xglog.WithContext(ctx, c.logger).With().Str(xglog.FieldURN, urn).Logger()

	target := c.URL(urn)
	if target == "" {
		logger.Debug().Err(ErrHostNotConfigured).Msg("remote cache lookup skipped")
		metrics.RecordCacheLookup(tierRemote, outcomeMiss)
		return "", time.Time{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var res fetchResult
	err := c.breaker.Execute(func() error {
		var err error
		res, err = c.get(ctx, target)
		return err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			logger.Debug().Msg("remote cache circuit open, treating as miss")
		} else {
			logger.Warn().Err(err).Str(xglog.FieldURL, target).Msg("remote cache fetch failed")
		}
		metrics.RecordCacheLookup(tierRemote, outcomeError)
		return "", time.Time{}, false
	}

	if res.status == http.StatusNotFound {
		logger.Debug().Msg("remote cache miss")
		metrics.RecordCacheLookup(tierRemote, outcomeMiss)
		return "", time.Time{}, false
	}

	// Only the IMF-fixdate form is accepted; obsolete RFC 850 and asctime
	// dates count as unparsable.
	lastModified, err := time.Parse(http.TimeFormat, res.lastModified)
	if err != nil {
		logger.Error().Err(err).Str("last_modified", res.lastModified).Msg("remote cache returned unparsable Last-Modified")
		metrics.RecordCacheLookup(tierRemote, outcomeError)
		return "", time.Time{}, false
	}

	doc, err := c.scheme.Decompress(res.body)
	if err != nil {
		logger.Error().Err(err).Msg("remote cache payload could not be decompressed")
		metrics.RecordCacheLookup(tierRemote, outcomeError)
		return "", time.Time{}, false
	}

	metrics.RecordCacheLookup(tierRemote, outcomeHit)
	return string(doc), lastModified, true
}

// get performs the request. A 404 is a successful round trip; any other
// non-2xx status counts against the breaker.
func (c *Client) get(ctx context.Context, target string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fetchResult{status: resp.StatusCode}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fetchResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fetchResult{}, fmt.Errorf("read body: %w", err)
	}
	return fetchResult{
		status:       resp.StatusCode,
		body:         body,
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// Store implements Backend.
func (c *Client) Store(ctx context.Context, urn, doc string) {
	logger := xglog.WithContext(ctx, c.logger).With().Str(xglog.FieldURN, urn).Logger()

	target := c.URL(urn)
	if target == "" {
		logger.Debug().Err(ErrHostNotConfigured).Msg("remote cache write skipped")
		metrics.RecordRemoteWrite("skipped")
		return
	}

	payload, err := c.scheme.Compress([]byte(doc))
	if err != nil {
		logger.Error().Err(err).Msg("remote cache payload could not be compressed")
		metrics.RecordRemoteWrite("failure")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", c.scheme.ContentType())
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("put: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldURL, target).Msg("remote cache write failed")
		metrics.RecordRemoteWrite("failure")
		return
	}
	logger.Debug().Int("bytes", len(payload)).Msg("remote cache write complete")
	metrics.RecordRemoteWrite("success")
}
