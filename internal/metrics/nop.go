// Package metrics provides MetricsCollector implementations: a no-op default
// and a Prometheus-backed collector.
package metrics

import "github.com/arloliu/solo/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Used when no collector option is supplied.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	agent, _ := solo.NewAgent(cfg, store, solo.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordTick discards the tick metric.
func (n *NopMetrics) RecordTick(_ /* status */ types.Status, _ /* action */ types.Action) {
	// No-op
}

// RecordTickError discards the tick error metric.
func (n *NopMetrics) RecordTickError(_ /* op */ string, _ /* kind */ types.ErrorKind) {
	// No-op
}

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* identity */ string, _ /* leader */ bool) {
	// No-op
}

// RecordStoreOperation discards the store latency metric.
func (n *NopMetrics) RecordStoreOperation(_ /* op */ string, _ /* seconds */ float64) {
	// No-op
}

// RecordTransitions discards the transitions gauge.
func (n *NopMetrics) RecordTransitions(_ /* transitions */ int32) {
	// No-op
}
