package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restexporter"

// Scrape outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeAuthFailure = "auth_failure"
	OutcomeForbidden   = "forbidden"
	OutcomeServerError = "server_error"
	OutcomeUnreachable = "unreachable"
	OutcomeInternal    = "error"
)

// Metrics is the exporter self-metrics registry.
type Metrics struct {
	registry *prometheus.Registry
	scrapes  *prometheus.CounterVec
	duration prometheus.Histogram
	failed   prometheus.Counter
}

// New returns Metrics with its collectors registered. retries reports the
// number of port-fallback retries within the retry window.
func New(retries func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Scrapes of the management REST API, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Duration of scrapes of the management REST API.",
			Buckets:   prometheus.DefBuckets,
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Queries rejected by the REST API and reported as comments.",
		}),
	}
	m.registry.MustRegister(
		m.scrapes,
		m.duration,
		m.failed,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rest_port_retries",
			Help:      "Port fallback retries in the last 10 minutes.",
		}, func() float64 { return float64(retries()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveScrape records one scrape.
func (m *Metrics) ObserveScrape(outcome string, d time.Duration, queryFailures int) {
	m.scrapes.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
	m.failed.Add(float64(queryFailures))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the self-metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
