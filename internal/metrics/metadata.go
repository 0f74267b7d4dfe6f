// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes prometheus collectors for the metadata engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_cache_lookups_total",
		Help: "Cache lookups by tier and outcome",
	}, []string{"tier", "outcome"}) // tier=local|remote, outcome=hit|stale|miss|error

	collectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_collections_total",
		Help: "Adapter collections by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=resolve|item|program_meta|program_feed|program_list, outcome=success|failure|panic

	remoteWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_remote_writes_total",
		Help: "Remote cache write-backs by outcome",
	}, []string{"outcome"}) // outcome=success|failure|skipped

	inflightCoalescedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_inflight_coalesced_total",
		Help: "Requests that joined an in-flight collection instead of starting one",
	}, []string{"kind"}) // kind=item|program|programs

	programAssemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediathek_program_assembly_duration_seconds",
		Help:    "Duration of program assembly from feed to stored document",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	})

	programAssemblyItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_program_assembly_items_total",
		Help: "Feed items during program assembly by result",
	}, []string{"result"}) // result=reused|collected|failed

	subscriptionRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_subscription_refresh_total",
		Help: "Subscription refreshes by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	localCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediathek_local_cache_entries",
		Help: "Number of documents in the in-process cache",
	})

	adapterHTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_adapter_http_requests_total",
		Help: "HTTP requests issued by adapter scripts by outcome",
	}, []string{"outcome"}) // outcome=success|error|throttled

	bundleLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_bundle_loads_total",
		Help: "Configuration bundle loads by source and outcome",
	}, []string{"source", "outcome"}) // source=disk|download|watch

	recommendationPostsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediathek_recommendation_posts_total",
		Help: "Fire-and-forget recommendation posts by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
)

// RecordCacheLookup counts a lookup against a cache tier.
func RecordCacheLookup(tier, outcome string) {
	cacheLookupsTotal.WithLabelValues(tier, outcome).Inc()
}

// RecordCollection counts an adapter call.
func RecordCollection(kind, outcome string) {
	collectionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRemoteWrite counts a remote cache write-back.
func RecordRemoteWrite(outcome string) {
	remoteWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordCoalesced counts a caller that shared an in-flight result.
func RecordCoalesced(kind string) {
	inflightCoalescedTotal.WithLabelValues(kind).Inc()
}

// ObserveProgramAssembly records how long an assembly took.
func ObserveProgramAssembly(d time.Duration) {
	programAssemblyDuration.Observe(d.Seconds())
}

// RecordAssemblyItems adds n items with the given result.
func RecordAssemblyItems(result string, n int) {
	if n <= 0 {
		return
	}
	programAssemblyItems.WithLabelValues(result).Add(float64(n))
}

// RecordSubscriptionRefresh counts a subscription refresh.
func RecordSubscriptionRefresh(outcome string) {
	subscriptionRefreshTotal.WithLabelValues(outcome).Inc()
}

// SetLocalCacheEntries publishes the local cache size.
func SetLocalCacheEntries(n int) {
	localCacheEntries.Set(float64(n))
}

// RecordAdapterHTTPRequest counts a request issued on behalf of an adapter.
func RecordAdapterHTTPRequest(outcome string) {
	adapterHTTPRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordBundleLoad counts a bundle load.
func RecordBundleLoad(source, outcome string) {
	bundleLoadsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordRecommendationPost counts a post to the recommendation service.
func RecordRecommendationPost(endpoint, outcome string) {
	recommendationPostsTotal.WithLabelValues(endpoint, outcome).Inc()
}
