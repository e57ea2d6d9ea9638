// Package telemetry exposes Prometheus collectors for the readability
// service: extraction outcomes, pool utilization, and HTTP request metrics.
package telemetry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readability_extractions_total",
			Help: "Total number of extraction tasks, labeled by host and outcome.",
		},
		[]string{"host", "outcome"},
	)

	extractionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readability_extraction_duration_seconds",
			Help:    "Histogram of extraction task latencies, labeled by outcome.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	poolBusyUnits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readability_pool_busy_units",
			Help: "Number of pool units currently executing a task.",
		},
	)

	poolWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "readability_pool_wait_seconds",
			Help:    "Histogram of time callers spent waiting for a free unit.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		},
	)

	unitRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readability_unit_restarts_total",
			Help: "Total number of forced unit restarts after task timeouts.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 45},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// SanitizeHost extracts a lowercase hostname from a URL, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveExtraction records one settled extraction task.
func ObserveExtraction(rawURL string, outcome string, duration time.Duration) {
	extractionsTotal.WithLabelValues(SanitizeHost(rawURL), outcome).Inc()
	extractionDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePoolWait records how long a caller waited for a free unit.
func ObservePoolWait(duration time.Duration) {
	poolWaitSeconds.Observe(duration.Seconds())
}

// ObserveUnitRestart records a forced unit restart.
func ObserveUnitRestart() {
	unitRestartsTotal.Inc()
}

// IncBusyUnits increments the busy unit gauge.
func IncBusyUnits() {
	poolBusyUnits.Inc()
}

// DecBusyUnits decrements the busy unit gauge.
func DecBusyUnits() {
	poolBusyUnits.Dec()
}
