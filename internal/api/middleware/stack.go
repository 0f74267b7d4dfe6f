// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	xglog "github.com/ManuGH/mediathek/internal/log"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	Logger zerolog.Logger

	EnableMetrics  bool
	TracingService string // empty disables tracing
	RatePerMinute  int    // <= 0 disables rate limiting
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(hlog.RequestIDHandler(xglog.FieldRequestID, RequestIDHeader))
	r.Use(requestIDContext)
	r.Use(Recoverer)
	r.Use(hlog.RemoteAddrHandler("remote_addr"))
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	r.Use(accessLog())
	r.Use(APIRateLimit(cfg.RatePerMinute))
}

// requestIDContext copies the hlog request id into the log context keys so
// downstream components pick it up through log.WithContext.
func requestIDContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := hlog.IDFromRequest(r); ok {
			r = r.WithContext(xglog.ContextWithRequestID(r.Context(), id.String()))
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Warn()
		}
		event.
			Str("method", r.Method).
			Str(xglog.FieldPath, r.URL.Path).
			Int(xglog.FieldStatus, status).
			Int("size", size).
			Int64(xglog.FieldDurationMS, duration.Milliseconds()).
			Msg("http request")
	})
}
