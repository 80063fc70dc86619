package types

// LeaseState is the conceptual state of the lease record as seen by one identity.
//
// States are derived fresh from the record on every tick; agents keep no
// state across ticks besides their identity and configuration.
type LeaseState int

const (
	// LeaseStateNoLease means the record does not exist yet.
	LeaseStateNoLease LeaseState = iota

	// LeaseStateUnheld means the record exists with no holder.
	LeaseStateUnheld

	// LeaseStateHeldBySelf means the evaluating identity holds an unexpired lease.
	LeaseStateHeldBySelf

	// LeaseStateHeldByOther means another identity holds an unexpired lease.
	LeaseStateHeldByOther

	// LeaseStateExpired means a holder exists but has not renewed within the lease duration.
	LeaseStateExpired
)

// String returns the string representation of the lease state.
func (s LeaseState) String() string {
	switch s {
	case LeaseStateNoLease:
		return "NoLease"
	case LeaseStateUnheld:
		return "Unheld"
	case LeaseStateHeldBySelf:
		return "HeldBySelf"
	case LeaseStateHeldByOther:
		return "HeldByOther"
	case LeaseStateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Acquirable reports whether an acquire-path write is allowed from this state.
func (s LeaseState) Acquirable() bool {
	return s == LeaseStateUnheld || s == LeaseStateExpired
}
