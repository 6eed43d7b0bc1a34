// Package metrics exposes pipeline counters on a private Prometheus registry.
//
// The registry is served by the HTTP API at /metrics and, for cron-driven
// runs, written to a node-exporter textfile after each cycle.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weekly_events"

// Drop reasons recorded by Dropped.
const (
	DropParse        = "parse"
	DropMissingField = "missing_field"
	DropURLDuplicate = "url_duplicate"
	DropKeyDuplicate = "key_duplicate"
	DropStoreError   = "store_error"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scraped        *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	candidates     prometheus.Gauge
	cycleDuration  prometheus.Histogram
	lastSuccess    prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.scraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_scraped_total",
		Help:      "Raw listings returned by each source",
	}, []string{"source"})
	m.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Scrapes that failed, per source",
	}, []string{"source"})
	m.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Listings dropped before reaching the store, by reason",
	}, []string{"reason"})
	m.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_outcomes_total",
		Help:      "Canonical store results: created, refreshed or duplicate",
	}, []string{"outcome"})
	m.candidates = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "candidates",
		Help:      "Size of the last selected candidate set",
	})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a complete scrape cycle",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time the last cycle completed",
	})

	m.registry.MustRegister(
		m.scraped,
		m.sourceFailures,
		m.dropped,
		m.outcomes,
		m.candidates,
		m.cycleDuration,
		m.lastSuccess,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventsScraped(source string, n int) {
	if m == nil {
		return
	}
	m.scraped.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) SourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) Dropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) StoreOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// CycleCompleted records the duration and candidate count of a finished cycle.
func (m *Metrics) CycleCompleted(d time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
	m.candidates.Set(float64(candidates))
	m.lastSuccess.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path atomically, for the
// node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
