package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters on a private registry so that tests
// and multiple analyzers do not collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	RowsExtracted      prometheus.Counter
	RowsSkipped        *prometheus.CounterVec
	ListingsClassified *prometheus.CounterVec
	FitFailures        prometheus.Counter
	PagesFetched       *prometheus.CounterVec
	RSquared           prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RowsExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "carinfo_rows_extracted_total",
			Help: "Ad rows extracted with all required fields",
		}),
		RowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carinfo_rows_skipped_total",
			Help: "Rows dropped by the skip-and-continue policy, by stage",
		}, []string{"stage"}),
		ListingsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carinfo_listings_classified_total",
			Help: "Listings classified, by class",
		}, []string{"class"}),
		FitFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "carinfo_fit_failures_total",
			Help: "Runs whose dataset could not be fitted",
		}),
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carinfo_pages_fetched_total",
			Help: "Classifieds pages fetched, by source (network|cache) and outcome",
		}, []string{"source", "outcome"}),
		RSquared: f.NewGauge(prometheus.GaugeOpts{
			Name: "carinfo_trend_r_squared",
			Help: "Goodness of fit of the most recent trend",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
// One-shot CLI runs use this instead of a scrape endpoint.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("metrics: write textfile %q: %w", path, err)
	}
	return nil
}

// RecordFetch counts one page fetch by source and outcome.
func (m *Metrics) RecordFetch(source string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PagesFetched.WithLabelValues(source, outcome).Inc()
}
