// Package observability provides metrics and monitoring capabilities for the
// application.
package observability

import (
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	HTTP     *metrics.HTTPMetrics
	Source   *metrics.SourceMetrics
	Analysis *metrics.AnalysisMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors against a fresh registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("collector", "http").
			Build()
	}

	sourceMetrics, err := metrics.NewSourceMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("collector", "source").
			Build()
	}

	analysisMetrics, err := metrics.NewAnalysisMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Context("collector", "analysis").
			Build()
	}

	return &Metrics{
		registry: registry,
		HTTP:     httpMetrics,
		Source:   sourceMetrics,
		Analysis: analysisMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
