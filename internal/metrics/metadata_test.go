// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counterVec.WithLabelValues(labels...).Write(metric))
	return metric.GetCounter().GetValue()
}

func TestRecordCacheLookup(t *testing.T) {
	before := getCounterVecValue(t, cacheLookupsTotal, "local", "hit")
	RecordCacheLookup("local", "hit")
	RecordCacheLookup("local", "hit")
	assert.Equal(t, before+2, getCounterVecValue(t, cacheLookupsTotal, "local", "hit"))
}

func TestRecordAssemblyItemsIgnoresZero(t *testing.T) {
	before := getCounterVecValue(t, programAssemblyItems, "reused")
	RecordAssemblyItems("reused", 0)
	RecordAssemblyItems("reused", -1)
	assert.Equal(t, before, getCounterVecValue(t, programAssemblyItems, "reused"))

	RecordAssemblyItems("reused", 3)
	assert.Equal(t, before+3, getCounterVecValue(t, programAssemblyItems, "reused"))
}

func TestSetLocalCacheEntries(t *testing.T) {
	SetLocalCacheEntries(42)
	assert.Equal(t, 42.0, getGaugeValue(t, localCacheEntries))
}

func TestObserveProgramAssembly(t *testing.T) {
	ObserveProgramAssembly(750 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(programAssemblyDuration))
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("remote_cache", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("remote_cache", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("remote_cache", "closed")))

	SetCircuitBreakerState("remote_cache", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("remote_cache", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("remote_cache", "closed")))
}

func TestPromhttpExposure(t *testing.T) {
	RecordCollection("item", "success")

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "mediathek_collections_total"), "collections counter not exposed")
}
