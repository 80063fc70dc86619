// Package memory provides an in-process LeaseStore.
//
// The store is backed by a lock-free concurrent map and gives every record a
// monotonically increasing integer version. It is intended for tests,
// examples, and single-process deployments where several agents share one
// address space.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/solo/types"
)

// Compile-time assertion that Store implements LeaseStore.
var _ types.LeaseStore = (*Store)(nil)

// Store is a concurrency-safe in-memory LeaseStore.
type Store struct {
	records *xsync.Map[string, *types.LeaseRecord]
	seq     atomic.Uint64
}

// New creates an empty in-memory store.
//
// Returns:
//   - *Store: Empty store ready for use
//
// Example:
//
//	store := memory.New()
//	agent, err := solo.NewAgent(cfg, store)
func New() *Store {
	return &Store{
		records: xsync.NewMap[string, *types.LeaseRecord](),
	}
}

// Get returns a copy of the named record.
func (s *Store) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	rec, ok := s.records.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: lease %q", types.ErrNotFound, name)
	}

	return rec.Clone(), nil
}

// Create stores rec if no record with the same name exists.
func (s *Store) Create(ctx context.Context, rec *types.LeaseRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	stored := rec.Clone()
	_, loaded := s.records.Compute(rec.Name, func(old *types.LeaseRecord, loaded bool) (*types.LeaseRecord, xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		stored.Version = s.nextVersion()

		return stored, xsync.UpdateOp
	})
	if loaded {
		return fmt.Errorf("%w: lease %q", types.ErrAlreadyExists, rec.Name)
	}

	return nil
}

// CompareAndSwap replaces the record if its version still equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.NoVersion, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	if err := rec.Validate(); err != nil {
		return types.NoVersion, err
	}

	var casErr error
	stored := rec.Clone()
	s.records.Compute(rec.Name, func(old *types.LeaseRecord, loaded bool) (*types.LeaseRecord, xsync.ComputeOp) {
		if !loaded {
			casErr = fmt.Errorf("%w: lease %q", types.ErrNotFound, rec.Name)
			return old, xsync.CancelOp
		}
		if old.Version != expected {
			casErr = fmt.Errorf("%w: lease %q at version %s, expected %s",
				types.ErrVersionConflict, rec.Name, old.Version, expected)
			return old, xsync.CancelOp
		}
		stored.Version = s.nextVersion()

		return stored, xsync.UpdateOp
	})
	if casErr != nil {
		return types.NoVersion, casErr
	}

	return stored.Version, nil
}

// Delete removes the named record. It is a no-op if the record is missing.
func (s *Store) Delete(name string) {
	s.records.Delete(name)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return s.records.Size()
}

func (s *Store) nextVersion() types.Version {
	return types.Version(strconv.FormatUint(s.seq.Add(1), 10))
}
