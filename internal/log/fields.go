// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Metadata fields
	FieldURN          = "urn"
	FieldPublisher    = "publisher_id"
	FieldStrategy     = "strategy"
	FieldSource       = "source"
	FieldTier         = "tier"
	FieldKind         = "kind"
	FieldMaxAge       = "max_age"
	FieldMaxItemAge   = "max_item_age"
	FieldFeedItems    = "feed_items"
	FieldCacheHits    = "cache_hits"
	FieldCacheMisses  = "cache_misses"
	FieldSubscription = "subscription_id"

	// Transport fields
	FieldURL        = "url"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldPath       = "path"
	FieldStack      = "stack"
)
