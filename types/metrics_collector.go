package types

// MetricsCollector defines methods for recording election metrics.
//
// Implementations should be non-blocking and thread-safe. The agent calls
// them from its loop goroutine once per tick.
type MetricsCollector interface {
	// RecordTick records the outcome of one tick.
	//
	// Parameters:
	//   - status: Leader or Follower
	//   - action: Write path taken (acquire, renew, yield, none)
	RecordTick(status Status, action Action)

	// RecordTickError records a recovered error inside a tick.
	//
	// Parameters:
	//   - op: Store operation that failed ("get", "create", "cas")
	//   - kind: Classified error kind
	RecordTickError(op string, kind ErrorKind)

	// RecordLeadershipChange records that this identity gained or lost leadership.
	//
	// Parameters:
	//   - identity: This agent's identity
	//   - leader: true when leadership was gained
	RecordLeadershipChange(identity string, leader bool)

	// RecordStoreOperation records lease store call latency.
	//
	// Parameters:
	//   - op: Store operation ("get", "create", "cas")
	//   - seconds: Time taken in seconds
	RecordStoreOperation(op string, seconds float64)

	// RecordTransitions sets the last observed transitions counter (gauge metric).
	RecordTransitions(transitions int32)
}
