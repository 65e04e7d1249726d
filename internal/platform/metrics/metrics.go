// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes Prometheus instrumentation for the identity service.

Collectors are registered once on the default registry through promauto and
scraped from /metrics via [Handler].

Families:

  - HTTP traffic: request count, latency and in-flight gauge, labelled by chi route pattern.
  - Auth events: outcomes of the credential and token flows.
  - Maintenance: rows removed by the background sweeper.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for [RecordAuthEvent].
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// HTTPRequestsTotal counts served requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "identity_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "identity_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// AuthEventsTotal counts auth lifecycle operations by outcome.
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_auth_events_total",
			Help: "Authentication lifecycle operations by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	// CleanupRowsTotal counts rows removed or cleared by the sweeper.
	CleanupRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_cleanup_rows_total",
			Help: "Expired credentials removed by the background sweeper",
		},
		[]string{"kind"},
	)
)

// RecordAuthEvent increments the auth event counter.
func RecordAuthEvent(event, outcome string) {
	AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordCleanup adds removed rows of the given kind.
func RecordCleanup(kind string, rows int64) {
	if rows > 0 {
		CleanupRowsTotal.WithLabelValues(kind).Add(float64(rows))
	}
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// # HTTP Middleware

type metricsRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *metricsRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// HTTP returns middleware that records request metrics keyed by route pattern.
//
// The pattern (e.g. /api/v1/users/{id}) keeps label cardinality bounded.
func HTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			startTime := time.Now()

			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			recorder := &metricsRecorder{ResponseWriter: writer, status: http.StatusOK}
			next.ServeHTTP(recorder, request)

			routePattern := "unknown"
			if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
				if pattern := routeContext.RoutePattern(); pattern != "" {
					routePattern = pattern
				}
			}

			HTTPRequestsTotal.WithLabelValues(request.Method, routePattern, strconv.Itoa(recorder.status)).Inc()
			httpRequestDuration.WithLabelValues(request.Method, routePattern).Observe(time.Since(startTime).Seconds())
		})
	}
}
