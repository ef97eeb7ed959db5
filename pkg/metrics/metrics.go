// Package metrics defines the Prometheus metric collectors used by the
// classifier and its HTTP surface, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the classifier.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	DocsIndexedTotal     prometheus.Counter
	IndexDocuments       prometheus.Gauge
	IndexFeatures        prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         prometheus.Histogram
	CandidatePoolSize    prometheus.Histogram
	PredictedLabels      prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	SinkErrorsTotal      *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "knn_docs_indexed_total",
				Help: "Total training documents added to the corpus index.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "knn_index_documents",
				Help: "Number of documents in the frozen corpus index.",
			},
		),
		IndexFeatures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "knn_index_features",
				Help: "Number of distinct features in the frozen corpus index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knn_queries_total",
				Help: "Total classified queries by outcome (predicted, no_candidates, empty).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "knn_query_latency_seconds",
				Help:    "Time to retrieve, rank and vote for one query.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		CandidatePoolSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "knn_candidate_pool_size",
				Help:    "Number of training documents scored per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		PredictedLabels: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "knn_predicted_labels",
				Help:    "Number of labels predicted per query.",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of prediction cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of prediction cache misses.",
			},
		),
		SinkErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knn_sink_errors_total",
				Help: "Failed prediction deliveries by sink.",
			},
			[]string{"sink"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsIndexedTotal,
		m.IndexDocuments,
		m.IndexFeatures,
		m.QueriesTotal,
		m.QueryLatency,
		m.CandidatePoolSize,
		m.PredictedLabels,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SinkErrorsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
