// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Metadata lookups
	MetadataURNKey      = "metadata.urn"
	MetadataStrategyKey = "metadata.strategy"
	MetadataSourceKey   = "metadata.source"
	MetadataMaxAgeKey   = "metadata.max_age_s"
	MetadataFreshKey    = "metadata.fresh"

	// Program assembly
	AssemblyPublisherKey = "assembly.publisher"
	AssemblyFeedItemsKey = "assembly.feed_items"
	AssemblyHitsKey      = "assembly.hits"
	AssemblyMissesKey    = "assembly.misses"

	// Collector calls
	CollectorKindKey = "collector.kind"
	CollectorArgKey  = "collector.arg"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// LookupAttributes describes a metadata request. An infinite maxAge is
// reported as -1.
func LookupAttributes(urn, strategy string, maxAge time.Duration) []attribute.KeyValue {
	seconds := int64(-1)
	if maxAge < time.Duration(1<<63-1) {
		seconds = int64(maxAge / time.Second)
	}
	return []attribute.KeyValue{
		attribute.String(MetadataURNKey, urn),
		attribute.String(MetadataStrategyKey, strategy),
		attribute.Int64(MetadataMaxAgeKey, seconds),
	}
}

// ResultAttributes describes where a lookup was satisfied from.
func ResultAttributes(source string, fresh bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MetadataSourceKey, source),
		attribute.Bool(MetadataFreshKey, fresh),
	}
}

// AssemblyAttributes describes a program assembly.
func AssemblyAttributes(publisher string, feedItems, hits, misses int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if publisher != "" {
		attrs = append(attrs, attribute.String(AssemblyPublisherKey, publisher))
	}
	return append(attrs,
		attribute.Int(AssemblyFeedItemsKey, feedItems),
		attribute.Int(AssemblyHitsKey, hits),
		attribute.Int(AssemblyMissesKey, misses),
	)
}

// CollectorAttributes describes an adapter call.
func CollectorAttributes(kind, arg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CollectorKindKey, kind),
		attribute.String(CollectorArgKey, arg),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
