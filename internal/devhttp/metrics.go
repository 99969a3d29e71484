package devhttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const MetricsRoute = "/__bengal_metrics__"

// Metrics holds the core's own build/reload counters, scoped down from the
// fuller observability stack a production service would carry (no tracing,
// no OTel — out of scope for this core per spec.md §6).
type Metrics struct {
	BuildsTotal       *prometheus.CounterVec
	BuildDurationSecs prometheus.Histogram
	ReloadsTotal      *prometheus.CounterVec
}

// NewMetrics registers the core's counters against a fresh registry so
// multiple dev-server instances in the same test process don't collide on
// the default global registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		BuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bengal_dev_builds_total",
			Help: "Total number of dev-server builds by result.",
		}, []string{"result"}),
		BuildDurationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "bengal_dev_build_duration_seconds",
			Help: "Dev-server build duration in seconds.",
		}),
		ReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bengal_dev_reload_total",
			Help: "Total number of reload decisions broadcast by action.",
		}, []string{"action"}),
	}, reg
}

// RecordBuild updates the build counters; durationSeconds is the build's
// wall-clock time.
func (m *Metrics) RecordBuild(success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.BuildsTotal.WithLabelValues(result).Inc()
	m.BuildDurationSecs.Observe(durationSeconds)
}

// RecordReload updates the reload counter for the given action.
func (m *Metrics) RecordReload(action string) {
	m.ReloadsTotal.WithLabelValues(action).Inc()
}

// Handler serves the registry's counters for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
