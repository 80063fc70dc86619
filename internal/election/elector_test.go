package election

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/store/memory"
	"github.com/arloliu/solo/types"
)

const (
	testLease    = "leader-election-lease"
	testDuration = 15 * time.Second
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestElector(t *testing.T, store types.LeaseStore, clk types.Clock, identity string, opts ...Option) *Elector {
	t.Helper()

	opts = append([]Option{WithClock(clk), WithLogger(logger.NewTest(t))}, opts...)
	e, err := New(store, Config{
		Name:          testLease,
		Scope:         "default",
		Identity:      identity,
		LeaseDuration: testDuration,
	}, opts...)
	require.NoError(t, err)

	return e
}

// seedHeld stores a record held by holder with the given renew time.
func seedHeld(t *testing.T, store types.LeaseStore, holder string, renewed time.Time, transitions int32) {
	t.Helper()

	rec := types.NewLeaseRecord(testLease, "default", 15)
	rec.HolderIdentity = holder
	acquired := renewed
	rec.AcquireTime = &acquired
	rec.RenewTime = &renewed
	rec.Transitions = transitions
	require.NoError(t, store.Create(t.Context(), rec))
}

func mustGet(t *testing.T, store types.LeaseStore) *types.LeaseRecord {
	t.Helper()

	rec, err := store.Get(t.Context(), testLease)
	require.NoError(t, err)

	return rec
}

func TestNew(t *testing.T) {
	valid := Config{Name: testLease, Identity: "a", LeaseDuration: testDuration}

	t.Run("requires a store", func(t *testing.T) {
		_, err := New(nil, valid)
		require.ErrorIs(t, err, types.ErrLeaseStoreRequired)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"empty identity", func(c *Config) { c.Identity = "" }},
		{"sub-second duration", func(c *Config) { c.LeaseDuration = 500 * time.Millisecond }},
		{"fractional duration", func(c *Config) { c.LeaseDuration = 1500 * time.Millisecond }},
		{"negative operation timeout", func(c *Config) { c.OperationTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(memory.New(), cfg)
			require.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}

	t.Run("defaults are usable", func(t *testing.T) {
		e, err := New(memory.New(), valid)
		require.NoError(t, err)
		require.Equal(t, "a", e.Identity())

		res := e.Tick(t.Context())
		require.Equal(t, types.StatusLeader, res.Status)
	})
}

func TestElector_Scenarios(t *testing.T) {
	t.Run("first tick creates the record and acquires", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0)
		a := newTestElector(t, store, clk, "A")

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusLeader, res.Status)
		require.Equal(t, types.ActionAcquire, res.Action)
		require.Equal(t, types.LeaseStateUnheld, res.State)
		require.True(t, res.Created)
		require.NoError(t, res.Err)

		rec := mustGet(t, store)
		require.Equal(t, "A", rec.HolderIdentity)
		require.Equal(t, int32(1), rec.Transitions)
		require.Equal(t, int32(15), rec.LeaseDurationSeconds)
		require.Equal(t, "default", rec.Scope)
		require.True(t, t0.Equal(*rec.AcquireTime))
		require.True(t, t0.Equal(*rec.RenewTime))
		require.Equal(t, rec.Version, res.Record.Version)
	})

	t.Run("holder renews before expiry", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(5 * time.Second))
		seedHeld(t, store, "A", t0, 1)
		a := newTestElector(t, store, clk, "A")

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusLeader, res.Status)
		require.Equal(t, types.ActionRenew, res.Action)
		require.Equal(t, types.LeaseStateHeldBySelf, res.State)

		rec := mustGet(t, store)
		require.True(t, t0.Add(5*time.Second).Equal(*rec.RenewTime))
		require.True(t, t0.Equal(*rec.AcquireTime))
		require.Equal(t, int32(1), rec.Transitions)
	})

	t.Run("follower yields to an unexpired holder without writing", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(3 * time.Second))
		seedHeld(t, store, "A", t0, 1)
		before := mustGet(t, store)
		b := newTestElector(t, store, clk, "B")

		res := b.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.Equal(t, types.ActionYield, res.Action)
		require.Equal(t, types.LeaseStateHeldByOther, res.State)
		require.NoError(t, res.Err)

		after := mustGet(t, store)
		require.Equal(t, before.Version, after.Version)
		require.Equal(t, "A", after.HolderIdentity)
	})

	t.Run("follower takes over an expired lease", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(16 * time.Second))
		seedHeld(t, store, "A", t0, 1)
		b := newTestElector(t, store, clk, "B")

		res := b.Tick(t.Context())
		require.Equal(t, types.StatusLeader, res.Status)
		require.Equal(t, types.ActionAcquire, res.Action)
		require.Equal(t, types.LeaseStateExpired, res.State)

		rec := mustGet(t, store)
		require.Equal(t, "B", rec.HolderIdentity)
		require.Equal(t, int32(2), rec.Transitions)
		require.True(t, t0.Equal(*rec.AcquireTime), "acquire time is preserved")
		require.True(t, t0.Add(16*time.Second).Equal(*rec.RenewTime))
	})

	t.Run("concurrent acquirers: one wins, the other follows and retries next tick", func(t *testing.T) {
		mem := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(16 * time.Second))
		seedHeld(t, mem, "X", t0, 4)

		// A's whole tick runs after B has read the record but before B writes.
		var a *Elector
		racing := &hookStore{LeaseStore: mem}
		racing.beforeCAS = func() {
			racing.beforeCAS = nil
			res := a.Tick(context.Background())
			require.Equal(t, types.StatusLeader, res.Status)
		}
		a = newTestElector(t, mem, clk, "A")
		b := newTestElector(t, racing, clk, "B")

		res := b.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.Equal(t, types.ActionAcquire, res.Action)
		require.ErrorIs(t, res.Err, types.ErrVersionConflict)

		rec := mustGet(t, mem)
		require.Equal(t, "A", rec.HolderIdentity)
		require.Equal(t, int32(5), rec.Transitions)

		clk.Step(5 * time.Second)
		res = b.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.Equal(t, types.ActionYield, res.Action)
		require.NoError(t, res.Err)
	})
}

func TestElector_Properties(t *testing.T) {
	t.Run("mutual exclusion across agents and time", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0)
		ids := []string{"A", "B", "C"}
		electors := make([]*Elector, len(ids))
		for i, id := range ids {
			electors[i] = newTestElector(t, store, clk, id)
		}

		// A stops ticking after the first rounds; leadership must move exactly once.
		holders := map[string]bool{}
		for round := range 12 {
			leaders := 0
			for i, e := range electors {
				if i == 0 && round >= 3 {
					continue
				}
				if e.Tick(t.Context()).Status.IsLeader() {
					leaders++
					holders[e.Identity()] = true
				}
			}
			require.LessOrEqual(t, leaders, 1, "round %d", round)
			clk.Step(5 * time.Second)
		}
		require.Len(t, holders, 2)
		require.True(t, holders["A"])
	})

	t.Run("renewal safety: a renewing holder is never displaced", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0)
		a := newTestElector(t, store, clk, "A")
		b := newTestElector(t, store, clk, "B")

		require.True(t, a.Tick(t.Context()).Status.IsLeader())
		for range 20 {
			clk.Step(14 * time.Second)
			require.Equal(t, types.ActionYield, b.Tick(t.Context()).Action)
			require.True(t, a.Tick(t.Context()).Status.IsLeader())
		}
		require.Equal(t, int32(1), mustGet(t, store).Transitions)
	})

	t.Run("expiry boundary is strict", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(testDuration))
		seedHeld(t, store, "A", t0, 1)
		b := newTestElector(t, store, clk, "B")

		require.Equal(t, types.ActionYield, b.Tick(t.Context()).Action)

		clk.Step(time.Nanosecond)
		require.True(t, b.Tick(t.Context()).Status.IsLeader())
	})

	t.Run("record lease duration overrides the configured one", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(20 * time.Second))
		rec := types.NewLeaseRecord(testLease, "default", 60)
		rec.HolderIdentity = "A"
		rec.RenewTime = &t0
		require.NoError(t, store.Create(t.Context(), rec))
		b := newTestElector(t, store, clk, "B")

		require.Equal(t, types.ActionYield, b.Tick(t.Context()).Action)
	})

	t.Run("holder without renew time is never expired", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0.Add(24 * time.Hour))
		rec := types.NewLeaseRecord(testLease, "default", 15)
		rec.HolderIdentity = "A"
		require.NoError(t, store.Create(t.Context(), rec))
		b := newTestElector(t, store, clk, "B")

		res := b.Tick(t.Context())
		require.Equal(t, types.ActionYield, res.Action)
		require.Equal(t, types.StatusFollower, res.Status)
	})

	t.Run("creation is idempotent under a create race", func(t *testing.T) {
		mem := memory.New()
		clk := testingclock.NewFakeClock(t0)
		racing := &hookStore{LeaseStore: mem}
		racing.beforeCreate = func() {
			require.NoError(t, mem.Create(context.Background(), types.NewLeaseRecord(testLease, "default", 15)))
		}
		a := newTestElector(t, racing, clk, "A")

		res := a.Tick(t.Context())
		require.False(t, res.Created)
		require.Equal(t, types.StatusLeader, res.Status)
		require.Equal(t, 1, mem.Len())
		require.Equal(t, int32(1), mustGet(t, mem).Transitions)
	})

	t.Run("transitions count acquisitions including own expired lease", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0)
		a := newTestElector(t, store, clk, "A")

		require.True(t, a.Tick(t.Context()).Status.IsLeader())
		clk.Step(30 * time.Second)

		res := a.Tick(t.Context())
		require.Equal(t, types.ActionAcquire, res.Action)
		require.Equal(t, types.LeaseStateExpired, res.State)
		require.True(t, res.Status.IsLeader())

		rec := mustGet(t, store)
		require.Equal(t, int32(2), rec.Transitions)
		require.True(t, t0.Equal(*rec.AcquireTime))
	})

	t.Run("transitions never decrease", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0)
		a := newTestElector(t, store, clk, "A")
		b := newTestElector(t, store, clk, "B")

		last := int32(0)
		for i := range 10 {
			e := a
			if i%2 == 1 {
				e = b
			}
			e.Tick(t.Context())
			cur := mustGet(t, store).Transitions
			require.GreaterOrEqual(t, cur, last)
			last = cur
			clk.Step(16 * time.Second)
		}
		require.Equal(t, int32(10), last)
	})
}

func TestElector_ForeignRecords(t *testing.T) {
	// Records written by other clients may lack a lease duration.
	noDuration := func(rec *types.LeaseRecord) { rec.LeaseDurationSeconds = 0 }

	t.Run("acquire fills the configured duration", func(t *testing.T) {
		mem := memory.New()
		require.NoError(t, mem.Create(t.Context(), types.NewLeaseRecord(testLease, "default", 30)))
		a := newTestElector(t, &hookStore{LeaseStore: mem, afterGet: noDuration}, testingclock.NewFakeClock(t0), "A")

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusLeader, res.Status)
		require.Equal(t, types.ActionAcquire, res.Action)
		require.Equal(t, int32(15), mustGet(t, mem).LeaseDurationSeconds)
	})

	t.Run("renew fills the configured duration", func(t *testing.T) {
		mem := memory.New()
		seedHeld(t, mem, "A", t0, 1)
		a := newTestElector(t, &hookStore{LeaseStore: mem, afterGet: noDuration}, testingclock.NewFakeClock(t0.Add(5*time.Second)), "A")

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusLeader, res.Status)
		require.Equal(t, types.ActionRenew, res.Action)
		require.Equal(t, int32(15), mustGet(t, mem).LeaseDurationSeconds)
	})

	t.Run("a present duration is kept", func(t *testing.T) {
		mem := memory.New()
		require.NoError(t, mem.Create(t.Context(), types.NewLeaseRecord(testLease, "default", 30)))
		a := newTestElector(t, mem, testingclock.NewFakeClock(t0), "A")

		require.True(t, a.Tick(t.Context()).Status.IsLeader())
		require.Equal(t, int32(30), mustGet(t, mem).LeaseDurationSeconds)
	})
}

func TestElector_Release(t *testing.T) {
	t.Run("holder clears itself and a successor acquires at once", func(t *testing.T) {
		store := memory.New()
		clk := testingclock.NewFakeClock(t0)
		a := newTestElector(t, store, clk, "A")
		b := newTestElector(t, store, clk, "B")

		require.True(t, a.Tick(t.Context()).Status.IsLeader())

		res := a.Release(t.Context())
		require.Equal(t, types.ActionRelease, res.Action)
		require.Equal(t, types.StatusFollower, res.Status)

		rec := mustGet(t, store)
		require.False(t, rec.IsHeld())
		require.Equal(t, int32(1), rec.Transitions)
		require.True(t, t0.Equal(*rec.RenewTime))

		clk.Step(time.Second)
		res = b.Tick(t.Context())
		require.True(t, res.Status.IsLeader())
		require.Equal(t, int32(2), mustGet(t, store).Transitions)
	})

	t.Run("non-holder writes nothing", func(t *testing.T) {
		store := memory.New()
		seedHeld(t, store, "A", t0, 1)
		before := mustGet(t, store)
		b := newTestElector(t, store, testingclock.NewFakeClock(t0), "B")

		res := b.Release(t.Context())
		require.Equal(t, types.ActionNone, res.Action)
		require.Equal(t, before.Version, mustGet(t, store).Version)
	})

	t.Run("missing record is not an error", func(t *testing.T) {
		res := newTestElector(t, memory.New(), testingclock.NewFakeClock(t0), "A").Release(t.Context())
		require.Equal(t, types.ActionNone, res.Action)
		require.NoError(t, res.Err)
	})
}

func TestElector_Failures(t *testing.T) {
	t.Run("read failure abandons the tick", func(t *testing.T) {
		rec := logger.NewRecorder()
		store := &hookStore{LeaseStore: memory.New(), getErr: fmt.Errorf("%w: boom", types.ErrStore)}
		a := newTestElector(t, store, testingclock.NewFakeClock(t0), "A", WithLogger(rec))

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.ErrorIs(t, res.Err, types.ErrStore)
		require.Equal(t, types.LeaseStateNoLease, res.State)

		entries := rec.Find("warn", "election tick abandoned")
		require.Len(t, entries, 1)
		require.Equal(t, OpGet, entries[0].Value("op"))
		require.Equal(t, "store", entries[0].Value("kind"))
	})

	t.Run("create failure abandons the tick", func(t *testing.T) {
		store := &hookStore{LeaseStore: memory.New(), createErr: fmt.Errorf("%w: forbidden", types.ErrStore)}
		a := newTestElector(t, store, testingclock.NewFakeClock(t0), "A")

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.ErrorIs(t, res.Err, types.ErrStore)
		require.False(t, res.Created)
	})

	t.Run("renew failure reports follower", func(t *testing.T) {
		mem := memory.New()
		seedHeld(t, mem, "A", t0, 1)
		store := &hookStore{LeaseStore: mem, casErr: errors.New("network unreachable")}
		a := newTestElector(t, store, testingclock.NewFakeClock(t0.Add(5*time.Second)), "A")

		res := a.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.Equal(t, types.ActionRenew, res.Action)
		require.Equal(t, types.KindStore, types.KindOf(res.Err))
	})

	t.Run("panicking store is recovered", func(t *testing.T) {
		store := &hookStore{LeaseStore: memory.New(), panicOnGet: true}
		a := newTestElector(t, store, testingclock.NewFakeClock(t0), "A")

		var res Result
		require.NotPanics(t, func() { res = a.Tick(t.Context()) })
		require.Equal(t, types.StatusFollower, res.Status)
		require.ErrorIs(t, res.Err, types.ErrStore)
	})

	t.Run("operation timeout bounds each store call", func(t *testing.T) {
		store := &hookStore{LeaseStore: memory.New(), blockGet: true}
		e, err := New(store, Config{
			Name:             testLease,
			Identity:         "A",
			LeaseDuration:    testDuration,
			OperationTimeout: 20 * time.Millisecond,
		})
		require.NoError(t, err)

		res := e.Tick(t.Context())
		require.Equal(t, types.StatusFollower, res.Status)
		require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	})

	t.Run("store calls are timed", func(t *testing.T) {
		m := &countingMetrics{}
		a := newTestElector(t, memory.New(), testingclock.NewFakeClock(t0), "A", WithMetrics(m))

		a.Tick(t.Context())
		// get, create, get, cas
		require.Equal(t, int64(4), m.storeOps.Load())
	})
}

// hookStore wraps a LeaseStore with injectable failures and interleavings.
type hookStore struct {
	types.LeaseStore

	getErr       error
	createErr    error
	casErr       error
	panicOnGet   bool
	blockGet     bool
	beforeCreate func()
	beforeCAS    func()
	afterGet     func(*types.LeaseRecord)
}

func (s *hookStore) Get(ctx context.Context, name string) (*types.LeaseRecord, error) {
	if s.panicOnGet {
		panic("store exploded")
	}
	if s.blockGet {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", types.ErrStore, ctx.Err())
	}
	if s.getErr != nil {
		return nil, s.getErr
	}

	rec, err := s.LeaseStore.Get(ctx, name)
	if err == nil && s.afterGet != nil {
		s.afterGet(rec)
	}

	return rec, err
}

func (s *hookStore) Create(ctx context.Context, rec *types.LeaseRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	if hook := s.beforeCreate; hook != nil {
		s.beforeCreate = nil
		hook()
	}

	return s.LeaseStore.Create(ctx, rec)
}

func (s *hookStore) CompareAndSwap(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	if s.casErr != nil {
		return types.NoVersion, s.casErr
	}
	if hook := s.beforeCAS; hook != nil {
		hook()
	}

	return s.LeaseStore.CompareAndSwap(ctx, rec, expected)
}

type countingMetrics struct {
	storeOps atomic.Int64
}

func (m *countingMetrics) RecordTick(types.Status, types.Action) {}
func (m *countingMetrics) RecordTickError(string, types.ErrorKind) {}
func (m *countingMetrics) RecordLeadershipChange(string, bool) {}
func (m *countingMetrics) RecordStoreOperation(string, float64) { m.storeOps.Add(1) }
func (m *countingMetrics) RecordTransitions(int32) {}
