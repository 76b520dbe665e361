// Package metrics defines the Prometheus collectors for index builds, matching and the
// HTTP surface, registered on a per-instance registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Index load sources.
const (
	SourceCache        = "cache"
	SourceBuilt        = "built"
	SourceRebuiltStale = "rebuilt_stale"
	SourceForced       = "forced"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	IndexBuildsTotal      *prometheus.CounterVec
	IndexBuildDuration    prometheus.Histogram
	IndexLoadsTotal       *prometheus.CounterVec
	IndexDocuments        prometheus.Gauge
	IndexTerms            prometheus.Gauge
	QueriesMatchedTotal   prometheus.Counter
	ZeroScoreMatchesTotal prometheus.Counter
	MatchLatency          prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	ReloadsTotal          *prometheus.CounterVec
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titlenorm_index_builds_total",
				Help: "TF-IDF index builds by status (success, error).",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "titlenorm_index_build_duration_seconds",
				Help:    "TF-IDF index build latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		IndexLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titlenorm_index_loads_total",
				Help: "Index loads by source (cache, built, rebuilt_stale, forced).",
			},
			[]string{"source"},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "titlenorm_index_documents",
				Help: "Canonical documents in the loaded index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "titlenorm_index_terms",
				Help: "Vocabulary size of the loaded index.",
			},
		),
		QueriesMatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "titlenorm_queries_matched_total",
				Help: "Queries matched against the index.",
			},
		),
		ZeroScoreMatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "titlenorm_zero_score_matches_total",
				Help: "Queries whose best match scored 0.",
			},
		),
		MatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "titlenorm_match_batch_duration_seconds",
				Help:    "Latency of one matching batch in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "titlenorm_result_cache_hits_total",
				Help: "Match result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "titlenorm_result_cache_misses_total",
				Help: "Match result cache misses.",
			},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titlenorm_reloads_total",
				Help: "Catalog reloads by status (success, error).",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "titlenorm_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "titlenorm_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.IndexLoadsTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.QueriesMatchedTotal,
		m.ZeroScoreMatchesTotal,
		m.MatchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ReloadsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBuild records one index build.
func (m *Metrics) ObserveBuild(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.IndexBuildDuration.Observe(elapsed.Seconds())
	}
}

// ObserveLoad records where an index came from and its size.
func (m *Metrics) ObserveLoad(source string, documents, terms int) {
	if m == nil {
		return
	}
	m.IndexLoadsTotal.WithLabelValues(source).Inc()
	m.IndexDocuments.Set(float64(documents))
	m.IndexTerms.Set(float64(terms))
}

// ObserveMatch records one matching batch.
func (m *Metrics) ObserveMatch(queries, zeroScore int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesMatchedTotal.Add(float64(queries))
	m.ZeroScoreMatchesTotal.Add(float64(zeroScore))
	m.MatchLatency.Observe(elapsed.Seconds())
}

// ObserveCache records result cache lookups.
func (m *Metrics) ObserveCache(hits, misses int) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Add(float64(hits))
	m.CacheMissesTotal.Add(float64(misses))
}

// ObserveReload records one catalog reload.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	m.ReloadsTotal.WithLabelValues(status(err)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, httpStatus(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func httpStatus(code int) string {
	if code == 0 {
		code = 200
	}
	return strconv.Itoa(code)
}
