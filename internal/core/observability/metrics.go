package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	filterRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aoi_filter_runs_total",
			Help: "AOI filter runs by outcome.",
		},
		[]string{"outcome"},
	)

	filterDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aoi_filter_duration_seconds",
			Help:    "Duration of AOI filter runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shapefile_uploads_total",
			Help: "Shapefile upload attempts by outcome.",
		},
		[]string{"outcome"},
	)

	jobSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_submissions_total",
			Help: "Extraction job submissions by outcome.",
		},
		[]string{"outcome"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footprint_cache_results_total",
			Help: "Footprint cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// ObserveFilter records a filter run. Outcome is one of "filtered",
// "show_all_empty_aoi", "show_all_no_predicate".
func ObserveFilter(outcome string, durationSeconds float64) {
	filterRunsTotal.WithLabelValues(outcome).Inc()
	filterDurationSeconds.Observe(durationSeconds)
}

func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

func IncJobSubmission(outcome string) {
	jobSubmissionsTotal.WithLabelValues(outcome).Inc()
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
