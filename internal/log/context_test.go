// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			got := RequestIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextWithJobID(t *testing.T) {
	ctx := ContextWithJobID(nil, "refresh-1")
	if got := JobIDFromContext(ctx); got != "refresh-1" {
		t.Errorf("JobIDFromContext() = %v, want refresh-1", got)
	}
}

func TestIDsFromContextEmpty(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "nil context", ctx: nil},
		{name: "context without IDs", ctx: context.Background()},
		{name: "context with wrong type", ctx: context.WithValue(context.Background(), requestIDKey, 123)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestIDFromContext(tt.ctx); got != "" {
				t.Errorf("RequestIDFromContext() = %v, want empty", got)
			}
			if got := JobIDFromContext(tt.ctx); got != "" {
				t.Errorf("JobIDFromContext() = %v, want empty", got)
			}
		})
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithJobID(ctx, "job-456")
	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry[FieldRequestID] != "req-123" {
		t.Errorf("request_id = %v, want req-123", entry[FieldRequestID])
	}
	if entry[FieldJobID] != "job-456" {
		t.Errorf("job_id = %v, want job-456", entry[FieldJobID])
	}
}

func TestWithComponentFromContext(t *testing.T) {
	noopTracer := noop.NewTracerProvider().Tracer("test")
	ctx, span := noopTracer.Start(context.Background(), "test-span")
	defer span.End()

	if l := WithComponentFromContext(ctx, "metadata"); l.GetLevel() > zerolog.PanicLevel {
		t.Error("Expected valid logger with noop span")
	}

	t.Run("WithValidSpan", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

		var buf bytes.Buffer
		Configure(Config{Output: &buf, Level: "info"})
		defer Configure(Config{})

		logger := WithComponentFromContext(ctx, "metadata")
		logger.Info().Msg("test with trace")

		var logEntry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
			t.Fatalf("Failed to parse log output: %v", err)
		}
		if logEntry[FieldTraceID] != "4bf92f3577b34da6a3ce929d0e0e4736" {
			t.Errorf("trace_id = %v", logEntry[FieldTraceID])
		}
		if logEntry[FieldSpanID] != "00f067aa0ba902b7" {
			t.Errorf("span_id = %v", logEntry[FieldSpanID])
		}
	})
}
