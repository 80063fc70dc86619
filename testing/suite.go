package testing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/solo/types"
)

// StoreFactory returns a LeaseStore for one subtest.
//
// The factory may return a fresh store per call or a shared one; every
// subtest uses its own lease name.
type StoreFactory func(t *testing.T) types.LeaseStore

// RunLeaseStoreSuite runs the LeaseStore conformance suite against a store.
//
// The suite checks the contract the election state machine relies on: reads
// of missing records, create-if-absent, compare-and-swap on the version
// token, and that exactly one of several concurrent creates, or of several
// concurrent swaps from the same version, wins.
//
// Timestamps used by the suite have whole-second precision so backends that
// persist milliseconds or microseconds round-trip them exactly.
//
// Parameters:
//   - t: Parent test
//   - newStore: Factory returning the store under test
//
// Example:
//
//	func TestStoreConformance(t *testing.T) {
//	    solotest.RunLeaseStoreSuite(t, func(t *testing.T) types.LeaseStore {
//	        return memory.New()
//	    })
//	}
func RunLeaseStoreSuite(t *testing.T, newStore StoreFactory) {
	t.Helper()

	base := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	t.Run("get of missing record returns not found", func(t *testing.T) {
		store := newStore(t)

		rec, err := store.Get(t.Context(), "suite-missing")
		require.Nil(t, rec)
		require.ErrorIs(t, err, types.ErrNotFound)
		require.Equal(t, types.KindNotFound, types.KindOf(err))
	})

	t.Run("create then get round trips every field", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		acquired := base
		renewed := base.Add(7 * time.Second)
		rec := types.NewLeaseRecord("suite-roundtrip", "default", 15)
		rec.HolderIdentity = "pod-a"
		rec.AcquireTime = &acquired
		rec.RenewTime = &renewed
		rec.Transitions = 3

		require.NoError(t, store.Create(ctx, rec))

		got, err := store.Get(ctx, "suite-roundtrip")
		require.NoError(t, err)
		require.Equal(t, "suite-roundtrip", got.Name)
		require.Equal(t, "pod-a", got.HolderIdentity)
		require.Equal(t, int32(15), got.LeaseDurationSeconds)
		require.Equal(t, int32(3), got.Transitions)
		require.NotNil(t, got.AcquireTime)
		require.NotNil(t, got.RenewTime)
		require.True(t, acquired.Equal(*got.AcquireTime), "acquireTime %v != %v", got.AcquireTime, acquired)
		require.True(t, renewed.Equal(*got.RenewTime), "renewTime %v != %v", got.RenewTime, renewed)
		require.NotEqual(t, types.NoVersion, got.Version)
	})

	t.Run("create keeps absent fields absent", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Create(ctx, types.NewLeaseRecord("suite-fresh", "default", 15)))

		got, err := store.Get(ctx, "suite-fresh")
		require.NoError(t, err)
		require.Empty(t, got.HolderIdentity)
		require.Nil(t, got.AcquireTime)
		require.Nil(t, got.RenewTime)
		require.Equal(t, int32(0), got.Transitions)
		require.False(t, got.IsHeld())
	})

	t.Run("second create returns already exists", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Create(ctx, types.NewLeaseRecord("suite-dup", "default", 15)))

		dup := types.NewLeaseRecord("suite-dup", "default", 30)
		dup.HolderIdentity = "intruder"
		err := store.Create(ctx, dup)
		require.ErrorIs(t, err, types.ErrAlreadyExists)
		require.Equal(t, types.KindAlreadyExists, types.KindOf(err))

		got, err := store.Get(ctx, "suite-dup")
		require.NoError(t, err)
		require.Empty(t, got.HolderIdentity)
		require.Equal(t, int32(15), got.LeaseDurationSeconds)
	})

	t.Run("exactly one concurrent create wins", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		const contenders = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
			exists  int
		)
		for i := range contenders {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()

				rec := types.NewLeaseRecord("suite-create-race", "default", 15)
				rec.HolderIdentity = string(rune('a' + id))
				err := store.Create(ctx, rec)

				mu.Lock()
				defer mu.Unlock()
				switch types.KindOf(err) {
				case types.KindNone:
					winners = append(winners, rec.HolderIdentity)
				case types.KindAlreadyExists:
					if errors.Is(err, types.ErrAlreadyExists) {
						exists++
					}
				case types.KindNotFound, types.KindVersionConflict, types.KindStore:
				}
			}(i)
		}
		wg.Wait()

		require.Len(t, winners, 1)
		require.Equal(t, contenders-1, exists)

		got, err := store.Get(ctx, "suite-create-race")
		require.NoError(t, err)
		require.Equal(t, winners[0], got.HolderIdentity)
		require.Equal(t, int32(15), got.LeaseDurationSeconds)
	})

	t.Run("create rejects invalid record", func(t *testing.T) {
		store := newStore(t)

		err := store.Create(t.Context(), types.NewLeaseRecord("suite-invalid", "default", 0))
		require.Error(t, err)
	})

	t.Run("compare and swap with current version succeeds", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Create(ctx, types.NewLeaseRecord("suite-cas", "default", 15)))
		cur, err := store.Get(ctx, "suite-cas")
		require.NoError(t, err)

		renewed := base
		cand := cur.Clone()
		cand.HolderIdentity = "pod-a"
		cand.AcquireTime = &renewed
		cand.RenewTime = &renewed
		cand.Transitions = 1

		version, err := store.CompareAndSwap(ctx, cand, cur.Version)
		require.NoError(t, err)
		require.NotEqual(t, types.NoVersion, version)
		require.NotEqual(t, cur.Version, version)

		got, err := store.Get(ctx, "suite-cas")
		require.NoError(t, err)
		require.Equal(t, version, got.Version)
		require.Equal(t, "pod-a", got.HolderIdentity)
		require.Equal(t, int32(1), got.Transitions)
		require.True(t, renewed.Equal(*got.RenewTime))
	})

	t.Run("compare and swap with stale version conflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Create(ctx, types.NewLeaseRecord("suite-stale", "default", 15)))
		stale, err := store.Get(ctx, "suite-stale")
		require.NoError(t, err)

		first := stale.Clone()
		first.HolderIdentity = "pod-a"
		_, err = store.CompareAndSwap(ctx, first, stale.Version)
		require.NoError(t, err)

		second := stale.Clone()
		second.HolderIdentity = "pod-b"
		_, err = store.CompareAndSwap(ctx, second, stale.Version)
		require.ErrorIs(t, err, types.ErrVersionConflict)
		require.Equal(t, types.KindVersionConflict, types.KindOf(err))

		got, err := store.Get(ctx, "suite-stale")
		require.NoError(t, err)
		require.Equal(t, "pod-a", got.HolderIdentity)
	})

	t.Run("compare and swap can clear the holder", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		held := types.NewLeaseRecord("suite-release", "default", 15)
		held.HolderIdentity = "pod-a"
		renewed := base
		held.RenewTime = &renewed
		held.Transitions = 2
		require.NoError(t, store.Create(ctx, held))

		cur, err := store.Get(ctx, "suite-release")
		require.NoError(t, err)

		cand := cur.Clone()
		cand.HolderIdentity = ""
		_, err = store.CompareAndSwap(ctx, cand, cur.Version)
		require.NoError(t, err)

		got, err := store.Get(ctx, "suite-release")
		require.NoError(t, err)
		require.False(t, got.IsHeld())
		require.Equal(t, int32(2), got.Transitions)
		require.NotNil(t, got.RenewTime)
	})

	t.Run("compare and swap on missing record fails", func(t *testing.T) {
		store := newStore(t)

		rec := types.NewLeaseRecord("suite-cas-missing", "default", 15)
		_, err := store.CompareAndSwap(t.Context(), rec, types.Version("1"))
		require.Error(t, err)
		kind := types.KindOf(err)
		require.True(t, kind == types.KindNotFound || kind == types.KindVersionConflict,
			"unexpected kind %s for %v", kind, err)
	})

	t.Run("exactly one concurrent swap from the same version wins", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.Create(ctx, types.NewLeaseRecord("suite-race", "default", 15)))
		cur, err := store.Get(ctx, "suite-race")
		require.NoError(t, err)

		const contenders = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			winners   []string
			conflicts int
		)
		for i := range contenders {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()

				cand := cur.Clone()
				cand.HolderIdentity = string(rune('a' + id))
				_, err := store.CompareAndSwap(ctx, cand, cur.Version)

				mu.Lock()
				defer mu.Unlock()
				switch types.KindOf(err) {
				case types.KindNone:
					winners = append(winners, cand.HolderIdentity)
				case types.KindVersionConflict:
					conflicts++
				case types.KindNotFound, types.KindAlreadyExists, types.KindStore:
				}
			}(i)
		}
		wg.Wait()

		require.Len(t, winners, 1)
		require.Equal(t, contenders-1, conflicts)

		got, err := store.Get(ctx, "suite-race")
		require.NoError(t, err)
		require.Equal(t, winners[0], got.HolderIdentity)
	})
}
