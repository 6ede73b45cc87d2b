// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	ListingsProcessedTotal *prometheus.CounterVec
	ListingDuration        prometheus.Histogram
	AdapterCallsTotal      *prometheus.CounterVec
	AdapterFallbacksTotal  *prometheus.CounterVec
	AdapterLatency         *prometheus.HistogramVec
	ImageFetchesTotal      *prometheus.CounterVec
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	VectorIndexSize        prometheus.Gauge
	VectorIndexRebuilds    prometheus.Counter
	ReportsWrittenTotal    prometheus.Counter
	ReportBatchesTotal     *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		ListingsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_processed_total",
				Help: "Total listings processed by verdict (Pass, Flag, Manual).",
			},
			[]string{"verdict"},
		),
		ListingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "listing_duration_seconds",
				Help:    "Wall time to fully score one listing.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		AdapterCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_calls_total",
				Help: "Total signal adapter invocations by adapter and outcome (ok, fallback, error).",
			},
			[]string{"adapter", "outcome"},
		),
		AdapterFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_fallbacks_total",
				Help: "Total documented fallback values returned, by adapter and reason.",
			},
			[]string{"adapter", "reason"},
		),
		AdapterLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_latency_seconds",
				Help:    "Signal adapter latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"adapter"},
		),
		ImageFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_fetches_total",
				Help: "Total remote image fetches by outcome (ok, error, timeout).",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total cache hits by cache name.",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total cache misses by cache name.",
			},
			[]string{"cache"},
		),
		VectorIndexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vector_index_size",
				Help: "Number of vectors currently held in the review-embedding index.",
			},
		),
		VectorIndexRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vector_index_rebuilds_total",
				Help: "Total index rebuilds caused by an embedding dimensionality change.",
			},
		),
		ReportsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reports_written_total",
				Help: "Total report records written to the output file.",
			},
		),
		ReportBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_batches_total",
				Help: "Total report batch operations by sink (file, postgres, kafka) and status.",
			},
			[]string{"sink", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.ListingsProcessedTotal,
		m.ListingDuration,
		m.AdapterCallsTotal,
		m.AdapterFallbacksTotal,
		m.AdapterLatency,
		m.ImageFetchesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VectorIndexSize,
		m.VectorIndexRebuilds,
		m.ReportsWrittenTotal,
		m.ReportBatchesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
