// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package metrics exposes Prometheus instrumentation for the HTTP API,
// the recommendation engine and the catalog store.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics.

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bibliograph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bibliograph_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// Recommendation metrics.

	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibliograph_recommend_requests_total",
			Help: "Total recommendation requests by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: "ok", "fallback", "partial", "error"
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bibliograph_recommend_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	RecommendCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bibliograph_recommend_candidates",
			Help:    "Candidates discovered per request by graph expansion",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bibliograph_response_cache_hits_total",
			Help: "Total recommendation response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bibliograph_response_cache_misses_total",
			Help: "Total recommendation response cache misses",
		},
	)

	// Graph metrics.

	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bibliograph_graph_nodes",
			Help: "Nodes in the active similarity graph snapshot",
		},
	)

	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bibliograph_graph_edges",
			Help: "Typed edges in the active similarity graph snapshot",
		},
	)

	GraphRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bibliograph_graph_rebuild_duration_seconds",
			Help:    "Duration of graph rebuilds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	GraphRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibliograph_graph_rebuilds_total",
			Help: "Total graph rebuilds by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// Catalog store metrics.

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bibliograph_store_operation_duration_seconds",
			Help:    "Duration of catalog store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibliograph_store_errors_total",
			Help: "Total catalog store errors by operation",
		},
		[]string{"operation"},
	)

	// Embedding provider metrics.

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibliograph_embedding_requests_total",
			Help: "Total embedding provider calls by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bibliograph_embedding_duration_seconds",
			Help:    "Duration of embedding provider calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}

// ObserveRecommend records one recommendation request.
func ObserveRecommend(mode, outcome string, candidates int, elapsed time.Duration) {
	RecommendRequests.WithLabelValues(mode, outcome).Inc()
	RecommendDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if candidates > 0 {
		RecommendCandidates.Observe(float64(candidates))
	}
}

// ObserveRebuild records one graph rebuild and updates the snapshot
// gauges.
func ObserveRebuild(nodes, edges int, elapsed time.Duration, err error) {
	if err != nil {
		GraphRebuilds.WithLabelValues("error").Inc()
		return
	}
	GraphRebuilds.WithLabelValues("ok").Inc()
	GraphRebuildDuration.Observe(elapsed.Seconds())
	GraphNodes.Set(float64(nodes))
	GraphEdges.Set(float64(edges))
}

// ObserveStore records one catalog store operation.
func ObserveStore(operation string, elapsed time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// ObserveEmbedding records one embedding provider call.
func ObserveEmbedding(elapsed time.Duration, err error) {
	if err != nil {
		EmbeddingRequests.WithLabelValues("error").Inc()
		return
	}
	EmbeddingRequests.WithLabelValues("ok").Inc()
	EmbeddingDuration.Observe(elapsed.Seconds())
}
