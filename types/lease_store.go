package types

import "context"

// LeaseStore is durable, versioned storage for named lease records.
//
// This is the entire surface the election core requires. Any store offering
// an atomic create and a compare-and-swap on a version token satisfies it:
// NATS KV, Kubernetes Lease objects, etcd, bbolt, MongoDB, Azure Table, or the
// in-memory store used in tests.
//
// Errors must be classifiable with KindOf:
//   - Get: ErrNotFound, or ErrStore for anything else
//   - Create: ErrAlreadyExists, or ErrStore
//   - CompareAndSwap: ErrVersionConflict, ErrNotFound, or ErrStore
//
// Implementations must be safe for concurrent use.
type LeaseStore interface {
	// Get reads the record named name.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - name: Lease name within the store's scope
	//
	// Returns:
	//   - *LeaseRecord: The record with its current Version
	//   - error: ErrNotFound if absent, ErrStore on failure
	Get(ctx context.Context, name string) (*LeaseRecord, error)

	// Create writes rec if no record with the same name exists.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - rec: Record to create (Version is ignored)
	//
	// Returns:
	//   - error: ErrAlreadyExists if a record exists, ErrStore on failure
	Create(ctx context.Context, rec *LeaseRecord) error

	// CompareAndSwap replaces the record if its current Version equals expected.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - rec: Replacement record (Version is ignored)
	//   - expected: Version observed by the caller
	//
	// Returns:
	//   - Version: The new Version after a successful write
	//   - error: ErrVersionConflict on mismatch, ErrNotFound if absent, ErrStore on failure
	CompareAndSwap(ctx context.Context, rec *LeaseRecord, expected Version) (Version, error)
}
