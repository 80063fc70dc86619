package solo

import "github.com/arloliu/solo/types"

// Re-export types from the types package.
//
// The election core and the lease stores depend on types rather than on
// solo, so these aliases give users solo.LeaseRecord, solo.Logger, etc.
// without an import cycle.
type (
	Version     = types.Version
	LeaseRecord = types.LeaseRecord
	Status      = types.Status
	Action      = types.Action
	LeaseState  = types.LeaseState
	TickResult  = types.TickResult
	ErrorKind   = types.ErrorKind
)

// Re-export interfaces from the types package for convenience.
type (
	LeaseStore       = types.LeaseStore
	Clock            = types.Clock
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export Status constants.
const (
	StatusFollower = types.StatusFollower
	StatusLeader   = types.StatusLeader
)

// Re-export Action constants.
const (
	ActionNone    = types.ActionNone
	ActionAcquire = types.ActionAcquire
	ActionRenew   = types.ActionRenew
	ActionYield   = types.ActionYield
	ActionRelease = types.ActionRelease
)

// Re-export LeaseState constants.
const (
	LeaseStateNoLease     = types.LeaseStateNoLease
	LeaseStateUnheld      = types.LeaseStateUnheld
	LeaseStateHeldBySelf  = types.LeaseStateHeldBySelf
	LeaseStateHeldByOther = types.LeaseStateHeldByOther
	LeaseStateExpired     = types.LeaseStateExpired
)

// NewLeaseRecord returns an unheld lease record.
var NewLeaseRecord = types.NewLeaseRecord

// KindOf classifies a lease store error.
var KindOf = types.KindOf
