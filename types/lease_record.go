package types

import (
	"fmt"
	"time"
)

// Version is the opaque concurrency-control stamp of a LeaseRecord.
//
// Versions are compared for equality only. Each store picks its own native
// representation (KV revision, resourceVersion, ETag, counter) and renders it
// as a string.
type Version string

// NoVersion is the zero Version, carried by records that were never persisted.
const NoVersion Version = ""

// String returns the raw version token.
func (v Version) String() string {
	return string(v)
}

// LeaseRecord is the shared lease every agent reads and conditionally writes.
//
// HolderIdentity is empty when the lease is unheld. AcquireTime and RenewTime
// are nil when absent. Version is assigned by the store and must be presented
// back unchanged on CompareAndSwap.
type LeaseRecord struct {
	// Name identifies the lease within its scope.
	Name string
	// Scope is the namespace (or bucket, table, prefix) the lease lives in.
	Scope string
	// HolderIdentity is the identity currently claiming leadership, empty if unheld.
	HolderIdentity string
	// LeaseDurationSeconds is how long an unrenewed claim stays valid.
	LeaseDurationSeconds int32
	// AcquireTime is when the current holder chain first acquired.
	AcquireTime *time.Time
	// RenewTime is the time of the most recent successful acquire or renew.
	RenewTime *time.Time
	// Transitions counts successful acquire-path writes.
	Transitions int32
	// Version is the store's concurrency-control stamp.
	Version Version
}

// NewLeaseRecord builds the fresh, unheld record written on the create path.
//
// Parameters:
//   - name: Lease name
//   - scope: Lease namespace/scope
//   - durationSeconds: Lease duration in whole seconds
//
// Returns:
//   - *LeaseRecord: Unheld record with zero transitions and no timestamps
func NewLeaseRecord(name, scope string, durationSeconds int32) *LeaseRecord {
	return &LeaseRecord{
		Name:                 name,
		Scope:                scope,
		LeaseDurationSeconds: durationSeconds,
	}
}

// Validate checks the structural invariants of a record.
//
// Returns:
//   - error: ErrInvalidRecord wrapped with the failing rule, nil if valid
func (r *LeaseRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if r.LeaseDurationSeconds <= 0 {
		return fmt.Errorf("%w: lease duration must be > 0, got %d", ErrInvalidRecord, r.LeaseDurationSeconds)
	}
	if r.Transitions < 0 {
		return fmt.Errorf("%w: transitions must be >= 0, got %d", ErrInvalidRecord, r.Transitions)
	}

	return nil
}

// Clone returns a deep copy of the record, including timestamp pointers.
func (r *LeaseRecord) Clone() *LeaseRecord {
	if r == nil {
		return nil
	}

	c := *r
	c.AcquireTime = cloneTime(r.AcquireTime)
	c.RenewTime = cloneTime(r.RenewTime)

	return &c
}

// IsHeld reports whether the record names a holder.
func (r *LeaseRecord) IsHeld() bool {
	return r.HolderIdentity != ""
}

// LeaseDuration returns the lease duration, falling back to fallback when the
// stored value is not positive.
func (r *LeaseRecord) LeaseDuration(fallback time.Duration) time.Duration {
	if r.LeaseDurationSeconds <= 0 {
		return fallback
	}

	return time.Duration(r.LeaseDurationSeconds) * time.Second
}

// IsExpired reports whether the holder's claim is stale at now.
//
// A claim is stale only when RenewTime is present and strictly more than the
// lease duration has passed since it. A held record without RenewTime is never
// considered expired.
//
// Parameters:
//   - now: Current time
//   - fallback: Duration used when the record carries no positive duration
//
// Returns:
//   - bool: true if now - RenewTime > lease duration
func (r *LeaseRecord) IsExpired(now time.Time, fallback time.Duration) bool {
	if r.RenewTime == nil {
		return false
	}

	return now.Sub(*r.RenewTime) > r.LeaseDuration(fallback)
}

// State derives the conceptual lease state for identity at now.
//
// Parameters:
//   - identity: The identity evaluating the record
//   - now: Current time
//   - fallback: Duration used when the record carries no positive duration
//
// Returns:
//   - LeaseState: Unheld, Expired, HeldBySelf or HeldByOther (NoLease for a nil record)
func (r *LeaseRecord) State(identity string, now time.Time, fallback time.Duration) LeaseState {
	switch {
	case r == nil:
		return LeaseStateNoLease
	case !r.IsHeld():
		return LeaseStateUnheld
	case r.IsExpired(now, fallback):
		return LeaseStateExpired
	case r.HolderIdentity == identity:
		return LeaseStateHeldBySelf
	default:
		return LeaseStateHeldByOther
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t

	return &c
}
