// Package metrics declares the Prometheus collectors of relic-search. All
// metrics are prefixed with "relic_search_" and registered with the default
// registry through promauto; mount promhttp.Handler() to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relic_search_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relic_search_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relic_search_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Reindex metrics
var (
	ReindexPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relic_search_reindex_passes_total",
			Help: "Total number of reindex passes by repository and outcome",
		},
		[]string{"repo", "outcome"}, // "committed", "up_to_date", "failed"
	)

	ReindexRecordsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relic_search_reindex_records_added_total",
			Help: "Total number of index records accepted by the backend",
		},
		[]string{"repo"},
	)

	ReindexNotIndexable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relic_search_reindex_not_indexable_total",
			Help: "Total number of files skipped because their content is not indexable",
		},
		[]string{"repo"},
	)

	ReindexPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relic_search_reindex_pass_duration_seconds",
			Help:    "Reindex pass duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"repo", "kind"}, // "full" or "targeted"
	)

	ReindexLastSuccessTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relic_search_reindex_last_success_timestamp",
			Help: "Unix timestamp of the last successful pass per repository",
		},
		[]string{"repo"},
	)

	ReindexRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relic_search_reindex_running",
			Help: "Number of bulk reindex runs currently in progress",
		},
	)
)

// Search metrics
var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relic_search_searches_total",
			Help: "Total number of searches by surface and status",
		},
		[]string{"surface", "status"}, // surface: "http", "mcp", "cli"
	)

	SearchHits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relic_search_search_hits",
			Help:    "Number of matches returned per search",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"surface"},
	)
)

// ObserveSearch records a finished search.
func ObserveSearch(surface string, hits int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SearchesTotal.WithLabelValues(surface, status).Inc()
	if err == nil {
		SearchHits.WithLabelValues(surface).Observe(float64(hits))
	}
}
