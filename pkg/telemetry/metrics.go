package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects reconciliation metrics on a private registry. A
// disabled Metrics instance is a safe no-op so callers never need nil
// checks around individual observations.
type Metrics struct {
	config MetricsConfig

	reconcilesStarted   *prometheus.CounterVec
	reconcilesCompleted *prometheus.CounterVec
	reconcileDuration   *prometheus.HistogramVec

	dependencyBuilds prometheus.Counter
	cacheHits        *prometheus.CounterVec

	activeTasks prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	registry := prometheus.NewRegistry()
	namespace := cfg.Namespace

	m := &Metrics{
		config:   cfg,
		registry: registry,

		reconcilesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciles_started_total",
				Help:      "Total number of reconcile tasks started",
			},
			[]string{"kind"},
		),
		reconcilesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciles_completed_total",
				Help:      "Total number of reconcile tasks completed",
			},
			[]string{"kind", "result"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of reconcile tasks in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		dependencyBuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chart_dependency_builds_total",
				Help:      "Total number of chart dependency build invocations",
			},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_cache_hits_total",
				Help:      "Total number of fetches skipped due to a cache hit",
			},
			[]string{"kind"},
		),
		activeTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_tasks",
				Help:      "Number of reconcile tasks running or queued",
			},
		),
	}

	registry.MustRegister(
		m.reconcilesStarted,
		m.reconcilesCompleted,
		m.reconcileDuration,
		m.dependencyBuilds,
		m.cacheHits,
		m.activeTasks,
	)
	return m
}

// Enabled reports whether metrics collection is active.
func (m *Metrics) Enabled() bool { return m != nil && m.registry != nil }

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReconcileStarted records the start of a reconcile task.
func (m *Metrics) ReconcileStarted(kind string) {
	if !m.Enabled() {
		return
	}
	m.reconcilesStarted.WithLabelValues(kind).Inc()
}

// ReconcileCompleted records a completed reconcile task and its duration.
func (m *Metrics) ReconcileCompleted(kind, result string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.reconcilesCompleted.WithLabelValues(kind, result).Inc()
	m.reconcileDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// DependencyBuild records a chart dependency build invocation.
func (m *Metrics) DependencyBuild() {
	if !m.Enabled() {
		return
	}
	m.dependencyBuilds.Inc()
}

// CacheHit records a fetch skipped because the artifact was cached.
func (m *Metrics) CacheHit(kind string) {
	if !m.Enabled() {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

// SetActiveTasks updates the active-task gauge.
func (m *Metrics) SetActiveTasks(n int) {
	if !m.Enabled() {
		return
	}
	m.activeTasks.Set(float64(n))
}
