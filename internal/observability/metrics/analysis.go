package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics contains Prometheus metrics for the analysis endpoints
type AnalysisMetrics struct {
	registry *prometheus.Registry

	analysisRunsTotal   *prometheus.CounterVec
	analysisDuration    *prometheus.HistogramVec
	analysisCacheHits   *prometheus.CounterVec
	analysisCacheMisses *prometheus.CounterVec
}

// NewAnalysisMetrics creates and registers new analysis metrics
func NewAnalysisMetrics(registry *prometheus.Registry) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnalysisMetrics) initMetrics() {
	m.analysisRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Total number of analysis computations",
		},
		[]string{"analysis", "status"}, // analysis: moult, places, map
	)

	m.analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Time taken for analysis computations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"analysis"},
	)

	m.analysisCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Total number of analysis result cache hits",
		},
		[]string{"analysis"},
	)

	m.analysisCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_cache_misses_total",
			Help: "Total number of analysis result cache misses",
		},
		[]string{"analysis"},
	)
}

func (m *AnalysisMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.analysisRunsTotal,
		m.analysisDuration,
		m.analysisCacheHits,
		m.analysisCacheMisses,
	}
}

// Describe implements the Collector interface
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordRun records one analysis computation
func (m *AnalysisMetrics) RecordRun(analysis, status string, duration float64) {
	m.analysisRunsTotal.WithLabelValues(analysis, status).Inc()
	m.analysisDuration.WithLabelValues(analysis).Observe(duration)
}

// RecordCacheHit records an analysis cache hit
func (m *AnalysisMetrics) RecordCacheHit(analysis string) {
	m.analysisCacheHits.WithLabelValues(analysis).Inc()
}

// RecordCacheMiss records an analysis cache miss
func (m *AnalysisMetrics) RecordCacheMiss(analysis string) {
	m.analysisCacheMisses.WithLabelValues(analysis).Inc()
}
