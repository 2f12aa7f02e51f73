package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SourceMetrics contains Prometheus metrics for the observation source
type SourceMetrics struct {
	registry *prometheus.Registry

	sourceLoadsTotal  *prometheus.CounterVec
	sourceLoadSeconds prometheus.Histogram
	sourceRows        prometheus.Gauge
	cacheInvalidated  prometheus.Counter
}

// NewSourceMetrics creates and registers new observation source metrics
func NewSourceMetrics(registry *prometheus.Registry) (*SourceMetrics, error) {
	m := &SourceMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SourceMetrics) initMetrics() {
	m.sourceLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observation_source_loads_total",
			Help: "Total number of sightings file loads",
		},
		[]string{"status"}, // status: success, error
	)

	m.sourceLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "observation_source_load_seconds",
			Help:    "Time taken to parse the sightings file",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.sourceRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "observation_source_rows",
			Help: "Number of observation rows in the last successful load",
		},
	)

	m.cacheInvalidated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observation_source_invalidations_total",
			Help: "Total number of source cache invalidations",
		},
	)
}

func (m *SourceMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sourceLoadsTotal,
		m.sourceLoadSeconds,
		m.sourceRows,
		m.cacheInvalidated,
	}
}

// Describe implements the Collector interface
func (m *SourceMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *SourceMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordLoad records one load of the sightings file
func (m *SourceMetrics) RecordLoad(status string, rows int, duration float64) {
	m.sourceLoadsTotal.WithLabelValues(status).Inc()
	m.sourceLoadSeconds.Observe(duration)
	if status == "success" {
		m.sourceRows.Set(float64(rows))
	}
}

// RecordInvalidation records one cache invalidation
func (m *SourceMetrics) RecordInvalidation() {
	m.cacheInvalidated.Inc()
}
