package solo

// Option configures an Agent with optional dependencies.
type Option func(*agentOptions)

// agentOptions holds optional Agent configuration.
type agentOptions struct {
	metrics MetricsCollector
	logger  Logger
	clock   Clock
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewAgent
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "solo")
//	agent, err := solo.NewAgent(cfg, store, solo.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *agentOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (slog, klog and zap.SugaredLogger style)
//
// Returns:
//   - Option: Functional option for NewAgent
//
// Example:
//
//	agent, err := solo.NewAgent(cfg, store, solo.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger Logger) Option {
	return func(o *agentOptions) {
		o.logger = logger
	}
}

// WithClock sets the time source used for expiry checks and tick delays.
//
// Tests pass a k8s.io/utils/clock/testing.FakeClock to step time deterministically.
//
// Parameters:
//   - clock: Clock implementation
//
// Returns:
//   - Option: Functional option for NewAgent
func WithClock(clock Clock) Option {
	return func(o *agentOptions) {
		o.clock = clock
	}
}
