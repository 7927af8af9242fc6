package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	runsTotal  *prometheus.CounterVec
	stepsTotal prometheus.Counter
	toolCalls  *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

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

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axon",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Orchestrator runs by terminal status.",
	}, []string{"status"})
	stepsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "axon",
		Subsystem: "orchestrator",
		Name:      "steps_total",
		Help:      "ReAct iterations executed across all runs.",
	})
	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axon",
		Subsystem: "orchestrator",
		Name:      "tool_calls_total",
		Help:      "Tool dispatches by tool and outcome.",
	}, []string{"tool", "status"})

	if err := reg.Register(runsTotal); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runsTotal = already.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}
	if err := reg.Register(stepsTotal); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			stepsTotal = already.ExistingCollector.(prometheus.Counter)
		} else {
			panic(err)
		}
	}
	if err := reg.Register(toolCalls); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			toolCalls = already.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}

	return &Metrics{runsTotal: runsTotal, stepsTotal: stepsTotal, toolCalls: toolCalls}
}
