package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting engine activity.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runsActive     prometheus.Gauge
	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics registered with the global
// Prometheus registry. Collectors are created once to avoid duplicate
// registration panics when multiple engines exist (unit tests, embedded use).
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registration errors panic, mirroring promauto semantics; an
// AlreadyRegisteredError reuses the existing collector.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axon",
			Subsystem: "engine",
			Name:      "workflow_runs_total",
			Help:      "Workflow executions by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "axon",
			Subsystem: "engine",
			Name:      "workflow_run_duration_seconds",
			Help:      "Wall-clock duration of workflow executions.",
			Buckets:   prometheus.DefBuckets,
		}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "axon",
			Subsystem: "engine",
			Name:      "workflow_runs_active",
			Help:      "Workflow executions currently in flight.",
		}),
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axon",
			Subsystem: "engine",
			Name:      "node_executions_total",
			Help:      "Node executions by type and outcome.",
		}, []string{"type", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "axon",
			Subsystem: "engine",
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}

	m.runsTotal = registerCounterVec(reg, m.runsTotal)
	m.nodeExecutions = registerCounterVec(reg, m.nodeExecutions)
	m.nodeDuration = registerHistogramVec(reg, m.nodeDuration)
	m.runDuration = registerHistogram(reg, m.runDuration)
	m.runsActive = registerGauge(reg, m.runsActive)
	return m
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return h
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(prometheus.Histogram)
		}
		panic(err)
	}
	return h
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) prometheus.Gauge {
	if err := reg.Register(g); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(prometheus.Gauge)
		}
		panic(err)
	}
	return g
}
