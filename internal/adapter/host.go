// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dop251/goja"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
)

const maxBodyBytes = 16 << 20

// readContentsOfURLAsString(url, headers, callback) performs a GET and calls
// callback(error, body, status). The request completes before the host
// function returns.
func (r *Runtime) readContentsOfURLAsString(inst *instance) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		vm := inst.vm
		cb, ok := goja.AssertFunction(call.Argument(2))
		if !ok {
			panic(vm.NewTypeError("readContentsOfURLAsString: callback is not a function"))
		}

		target := call.Argument(0).String()
		headers := exportHeaders(call.Argument(1))

		body, status, err := r.get(inst.ctx, target, headers)
		var args []goja.Value
		if err != nil {
			args = []goja.Value{vm.ToValue(err.Error()), goja.Null()}
		} else {
			args = []goja.Value{goja.Null(), vm.ToValue(body), vm.ToValue(status)}
		}
		if _, err := cb(goja.Undefined(), args...); err != nil {
			panic(err)
		}
		return goja.Undefined()
	}
}

func exportHeaders(v goja.Value) map[string]string {
	out := map[string]string{}
	if isNullish(v) {
		return out
	}
	m, ok := v.Export().(map[string]interface{})
	if !ok {
		return out
	}
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (r *Runtime) get(ctx context.Context, target string, headers map[string]string) (string, int, error) {
	logger := xglog.WithContext(ctx, r.logger).With().Str(xglog.FieldURL, target).Logger()

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		metrics.RecordAdapterHTTPRequest("invalid_url")
		return "", 0, fmt.Errorf("invalid URL")
	}

	if err := r.limiter.Wait(ctx); err != nil {
		metrics.RecordAdapterHTTPRequest("rate_limited")
		return "", 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		metrics.RecordAdapterHTTPRequest("invalid_url")
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		metrics.RecordAdapterHTTPRequest("error")
		logger.Warn().Err(err).Msg("adapter request failed")
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordAdapterHTTPRequest("error")
		return "", 0, fmt.Errorf("read body: %w", err)
	}

	metrics.RecordAdapterHTTPRequest("success")
	logger.Debug().
		Int(xglog.FieldStatus, resp.StatusCode).
		Int64(xglog.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("adapter request")
	return string(body), resp.StatusCode, nil
}

// nativeLog(message, level) forwards script log lines.
func (r *Runtime) nativeLog(message, level string) {
	r.logger.WithLevel(xglog.ParseAdapterLevel(level)).
		Str(xglog.FieldComponent, "script").
		Msg(message)
}
