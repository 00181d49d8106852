package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a Metrics implementation backed by client_golang vector
// collectors, registered lazily per metric name. It gives Genesis's
// monitor launcher a /metrics endpoint alongside the OTEL-backed ClueMetrics
// used by participants, following the vector-metric idiom of the pack's
// infrastructure repos rather than clue's OTEL pipeline.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusMetrics constructs a PrometheusMetrics bound to the given
// registry. If registry is nil, a fresh prometheus.Registry is created.
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &PrometheusMetrics{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// Registry returns the underlying prometheus.Registry for use with
// promhttp.HandlerFor in the monitor launcher.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

func tagLabels(tags []string) ([]string, prometheus.Labels) {
	labels := make(prometheus.Labels, len(tags)/2)
	names := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		names = append(names, tags[i])
		labels[tags[i]] = tags[i+1]
	}
	return names, labels
}

// IncCounter increments a counter metric, registering it on first use.
func (m *PrometheusMetrics) IncCounter(name string, value float64, tags ...string) {
	names, labels := tagLabels(tags)
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, names)
		m.registry.MustRegister(vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()
	vec.With(labels).Add(value)
}

// RecordTimer records a duration histogram, registering it on first use.
func (m *PrometheusMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	names, labels := tagLabels(tags)
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, names)
		m.registry.MustRegister(vec)
		m.histograms[name] = vec
	}
	m.mu.Unlock()
	vec.With(labels).Observe(duration.Seconds())
}

// RecordGauge sets a gauge metric, registering it on first use.
func (m *PrometheusMetrics) RecordGauge(name string, value float64, tags ...string) {
	names, labels := tagLabels(tags)
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, names)
		m.registry.MustRegister(vec)
		m.gauges[name] = vec
	}
	m.mu.Unlock()
	vec.With(labels).Set(value)
}
