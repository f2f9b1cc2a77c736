// Package metrics exposes Prometheus collectors for the ingest service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal          *prometheus.CounterVec
	harvestBytesTotal          *prometheus.CounterVec
	harvestFetchSeconds        *prometheus.HistogramVec
	harvestItemsTotal          *prometheus.CounterVec
	harvestRunsTotal           *prometheus.CounterVec
	harvestActiveWorkers       prometheus.Gauge
	harvestQualityScore        *prometheus.HistogramVec
	workflowTransitionsTotal   *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		harvestBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		harvestFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"site"},
		)

		harvestItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_items_total",
				Help: "Total number of extracted items, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		harvestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_runs_total",
				Help: "Total number of finished runs, labeled by final status.",
			},
			[]string{"status"},
		)

		harvestActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_active_workers",
				Help: "Number of workers currently executing a run.",
			},
		)

		harvestQualityScore = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_quality_score",
				Help:    "Distribution of quality scores, labeled by source.",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
			[]string{"source"},
		)

		workflowTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_transitions_total",
				Help: "Total number of workflow transitions, labeled by action.",
			},
			[]string{"action"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by source.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}

// ObserveFetch increments the page fetch metrics and records the fetch
// latency.
func ObserveFetch(site string, status string, bytesFetched int, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	harvestPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		harvestBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
	if duration > 0 {
		harvestFetchSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
	}
}

// ObserveItem increments the item counter for one processing outcome.
func ObserveItem(sourceID, outcome string) {
	harvestItemsTotal.WithLabelValues(sourceID, outcome).Inc()
}

// ObserveRun increments the run counter for the given final status.
func ObserveRun(status string) {
	harvestRunsTotal.WithLabelValues(status).Inc()
}

// ObserveQualityScore records one quality score.
func ObserveQualityScore(sourceID string, score float64) {
	harvestQualityScore.WithLabelValues(sourceID).Observe(score)
}

// ObserveTransition increments the workflow transition counter.
func ObserveTransition(action string) {
	workflowTransitionsTotal.WithLabelValues(action).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	harvestActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	harvestActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(sourceID string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(sourceID).Observe(duration.Seconds())
}
