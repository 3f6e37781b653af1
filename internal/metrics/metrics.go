// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

// Package metrics exposes Prometheus instrumentation for the service:
// HTTP endpoint latency, model-server calls, ranking, feedback intake,
// and the asynchronous persistence queue.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	// Model-server client metrics
	InferenceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_request_duration_seconds",
			Help:    "Duration of model-server requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	InferenceRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_request_errors_total",
			Help: "Total number of failed model-server requests",
		},
		[]string{"operation"},
	)

	InferenceBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inference_circuit_breaker_state",
			Help: "Model-server circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Ranking metrics
	RankRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rank_request_duration_seconds",
			Help:    "End-to-end duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RankCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rank_candidates_retrieved",
			Help:    "Number of candidates retrieved per recommendation request",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	// Feedback metrics
	FeedbackSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Total number of feedback submissions by outcome",
		},
		[]string{"status"},
	)

	// Persistence queue metrics
	PersistJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_jobs_total",
			Help: "Total number of persistence jobs by artifact and outcome",
		},
		[]string{"artifact", "outcome"},
	)

	PersistJobsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_jobs_dropped_total",
			Help: "Persistence jobs dropped because the queue was full",
		},
		[]string{"artifact"},
	)

	PersistQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "persist_queue_depth",
			Help: "Current depth of the persistence queue per artifact",
		},
		[]string{"artifact"},
	)

	// Catalog metrics
	CatalogRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_rows",
			Help: "Number of review-level rows in the loaded catalog",
		},
	)

	CatalogUniqueItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_unique_items",
			Help: "Number of unique items in the loaded catalog",
		},
	)

	ProcessedCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processed_cache_hits_total",
			Help: "Processed-catalog cache hits",
		},
	)

	ProcessedCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processed_cache_misses_total",
			Help: "Processed-catalog cache misses",
		},
	)
)

// ObserveHTTPRequest records duration and count for a completed HTTP request.
func ObserveHTTPRequest(path, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestDuration.WithLabelValues(path, method, code).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(path, method, code).Inc()
}

// ObserveInference records a model-server call.
func ObserveInference(operation string, duration time.Duration, err error) {
	InferenceRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		InferenceRequestErrors.WithLabelValues(operation).Inc()
	}
}
