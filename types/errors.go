package types

import "errors"

// Sentinel errors for the solo library.
//
// Lease stores translate their native failures into these sentinels so the
// election core can branch on KindOf instead of inspecting backend errors.
// External errors are wrapped with context: fmt.Errorf("%w: %w", ErrStore, err).

// Lease store errors - returned by every LeaseStore implementation.
var (
	// ErrNotFound is returned when the lease record does not exist.
	ErrNotFound = errors.New("lease record not found")

	// ErrAlreadyExists is returned by Create when the lease record already exists.
	ErrAlreadyExists = errors.New("lease record already exists")

	// ErrVersionConflict is returned by CompareAndSwap when the presented version is stale.
	ErrVersionConflict = errors.New("lease record version conflict")

	// ErrStore wraps any other store failure (connectivity, timeouts, decoding).
	ErrStore = errors.New("lease store error")

	// ErrInvalidRecord is returned when a lease record violates its invariants.
	ErrInvalidRecord = errors.New("invalid lease record")
)

// Agent errors - public API errors returned by the Agent.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = errors.New("lease store is required")

	// ErrAlreadyStarted is returned when Start is called on a running agent.
	ErrAlreadyStarted = errors.New("agent already started")

	// ErrNotStarted is returned when Stop is called on an agent that is not running.
	ErrNotStarted = errors.New("agent not started")

	// ErrConnectivity indicates a transport-level failure talking to the store.
	ErrConnectivity = errors.New("connectivity issue")
)

// ErrorKind discriminates the outcome of a LeaseStore operation.
type ErrorKind int

const (
	// KindNone means the operation succeeded.
	KindNone ErrorKind = iota
	// KindNotFound means the record is absent.
	KindNotFound
	// KindAlreadyExists means a create lost the race to another writer.
	KindAlreadyExists
	// KindVersionConflict means a compare-and-swap presented a stale version.
	KindVersionConflict
	// KindStore means any other failure.
	KindStore
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindVersionConflict:
		return "version_conflict"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// KindOf classifies err into an ErrorKind.
//
// Unclassified errors are KindStore, so callers can treat every non-nil error
// they do not specifically handle as a store failure.
//
// Parameters:
//   - err: Error returned by a LeaseStore operation
//
// Returns:
//   - ErrorKind: The discriminated outcome
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrVersionConflict):
		return KindVersionConflict
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindStore
	}
}
