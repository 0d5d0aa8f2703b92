// Package metrics defines the Prometheus metric collectors used across the
// knowledge base and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexOpsTotal        *prometheus.CounterVec
	IndexDocuments       prometheus.Gauge
	IndexRebuildDuration prometheus.Histogram
	IndexDesyncTotal     *prometheus.CounterVec
	LifecycleOpsTotal    *prometheus.CounterVec
	VotesTotal           *prometheus.CounterVec
	ArticleViewsTotal    prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kb_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kb_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kb_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kb_search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_search_cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_search_cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		IndexOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_index_operations_total",
				Help: "Index mutations by operation (add, update, remove).",
			},
			[]string{"op"},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kb_index_documents",
				Help: "Number of articles currently in the search index.",
			},
		),
		IndexRebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kb_index_rebuild_duration_seconds",
				Help:    "Time taken to rebuild the search index from the store.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		IndexDesyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_index_desync_total",
				Help: "Writes whose store step committed but a later step failed, by operation and step.",
			},
			[]string{"op", "step"},
		),
		LifecycleOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_lifecycle_operations_total",
				Help: "Article lifecycle operations by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		VotesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kb_votes_total",
				Help: "Votes recorded by direction and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		ArticleViewsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kb_article_views_total",
				Help: "Article views that incremented the view counter.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kb_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexOpsTotal,
		m.IndexDocuments,
		m.IndexRebuildDuration,
		m.IndexDesyncTotal,
		m.LifecycleOpsTotal,
		m.VotesTotal,
		m.ArticleViewsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
