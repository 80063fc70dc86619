package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/solo/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metrics are created and registered lazily on first use, so constructing a
// collector that is never exercised registers nothing.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	ticks              *prometheus.CounterVec
	tickErrors         *prometheus.CounterVec
	leadershipChanges  *prometheus.CounterVec
	isLeader           prometheus.Gauge
	storeOpLatency     *prometheus.HistogramVec
	observedTransition prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "solo" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "solo"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.ticks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "ticks_total",
			Help:      "Total election ticks by resulting status and action.",
		}, []string{"status", "action"})

		p.tickErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "tick_errors_total",
			Help:      "Recovered errors inside ticks by store operation and error kind.",
		}, []string{"op", "kind"})

		p.leadershipChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "leadership_changes_total",
			Help:      "Leadership gained/lost events for this identity.",
		}, []string{"identity", "change"})

		p.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "is_leader",
			Help:      "1 if this process held the lease after its last tick, 0 otherwise.",
		})

		p.storeOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Lease store call latency in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"op"})

		p.observedTransition = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "lease_transitions",
			Help:      "Transitions counter of the lease record as last observed.",
		})

		p.reg.MustRegister(p.ticks)
		p.reg.MustRegister(p.tickErrors)
		p.reg.MustRegister(p.leadershipChanges)
		p.reg.MustRegister(p.isLeader)
		p.reg.MustRegister(p.storeOpLatency)
		p.reg.MustRegister(p.observedTransition)
	})
}

// RecordTick increments the tick counter and updates the leader gauge.
func (p *PrometheusCollector) RecordTick(status types.Status, action types.Action) {
	p.ensureRegistered()
	p.ticks.WithLabelValues(status.String(), action.String()).Inc()
	if status.IsLeader() {
		p.isLeader.Set(1)
	} else {
		p.isLeader.Set(0)
	}
}

// RecordTickError increments the recovered error counter.
func (p *PrometheusCollector) RecordTickError(op string, kind types.ErrorKind) {
	p.ensureRegistered()
	p.tickErrors.WithLabelValues(op, kind.String()).Inc()
}

// RecordLeadershipChange increments the gained/lost counter.
func (p *PrometheusCollector) RecordLeadershipChange(identity string, leader bool) {
	p.ensureRegistered()
	change := "lost"
	if leader {
		change = "gained"
	}
	p.leadershipChanges.WithLabelValues(identity, change).Inc()
}

// RecordStoreOperation observes a store call latency.
func (p *PrometheusCollector) RecordStoreOperation(op string, seconds float64) {
	p.ensureRegistered()
	p.storeOpLatency.WithLabelValues(op).Observe(seconds)
}

// RecordTransitions sets the observed transitions gauge.
func (p *PrometheusCollector) RecordTransitions(transitions int32) {
	p.ensureRegistered()
	p.observedTransition.Set(float64(transitions))
}
