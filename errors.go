package solo

import "github.com/arloliu/solo/types"

// Sentinel errors returned by the Agent and by lease stores.
//
// They are the same values as in the types package, so errors.Is works
// regardless of which package the caller imports.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = types.ErrLeaseStoreRequired

	// ErrAlreadyStarted is returned when Start or Run is called on a running agent.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when Stop is called on an agent that is not running.
	ErrNotStarted = types.ErrNotStarted

	// ErrNotFound is returned by a store when the lease record does not exist.
	ErrNotFound = types.ErrNotFound

	// ErrAlreadyExists is returned by Create when the record already exists.
	ErrAlreadyExists = types.ErrAlreadyExists

	// ErrVersionConflict is returned by CompareAndSwap on a stale version.
	ErrVersionConflict = types.ErrVersionConflict

	// ErrStore wraps any other store failure.
	ErrStore = types.ErrStore

	// ErrInvalidRecord is returned when a lease record violates its invariants.
	ErrInvalidRecord = types.ErrInvalidRecord
)
