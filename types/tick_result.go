package types

// TickResult describes the outcome of one election tick.
type TickResult struct {
	// Status is Leader only when this tick's write succeeded.
	Status Status
	// Action is the path the tick took.
	Action Action
	// State is the lease state observed before any write.
	State LeaseState
	// Record is the record after the tick: the written candidate on success,
	// otherwise the record as read (nil if the read failed).
	Record *LeaseRecord
	// Created is true if this tick created the record.
	Created bool
	// Err is the recovered error, if any. It is informational only.
	Err error
}

// Holder returns the holder identity of the record after the tick, or ""
// when there is no record.
func (r TickResult) Holder() string {
	if r.Record == nil {
		return ""
	}

	return r.Record.HolderIdentity
}
