package natskv

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/solo/internal/logger"
	solotest "github.com/arloliu/solo/testing"
	"github.com/arloliu/solo/types"
)

func TestStore_Conformance(t *testing.T) {
	_, nc := solotest.StartEmbeddedNATS(t)
	kv := solotest.CreateJetStreamKV(t, nc, "conformance")

	// Shared bucket; every subtest uses its own lease name.
	solotest.RunLeaseStoreSuite(t, func(t *testing.T) types.LeaseStore {
		return NewWithKeyValue(kv, "default", WithLogger(logger.NewTest(t)))
	})
}

func TestNew(t *testing.T) {
	_, nc := solotest.StartEmbeddedNATS(t)
	ctx := t.Context()

	t.Run("creates the bucket with lease settings", func(t *testing.T) {
		store, err := New(ctx, nc, Config{Scope: "default", MemoryStorage: true})
		require.NoError(t, err)

		status, err := store.kv.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, DefaultBucket, status.Bucket())
		require.Equal(t, int64(1), status.History())
		require.Equal(t, time.Duration(0), status.TTL())
	})

	t.Run("agents share the bucket and record", func(t *testing.T) {
		a, err := New(ctx, nc, Config{Bucket: "shared", Scope: "prod", MemoryStorage: true})
		require.NoError(t, err)
		b, err := New(ctx, nc, Config{Bucket: "shared", Scope: "prod", MemoryStorage: true})
		require.NoError(t, err)

		require.NoError(t, a.Create(ctx, types.NewLeaseRecord("lease", "prod", 15)))
		_, err = b.Get(ctx, "lease")
		require.NoError(t, err)
	})

	t.Run("scopes isolate records", func(t *testing.T) {
		a, err := New(ctx, nc, Config{Bucket: "scoped", Scope: "team-a", MemoryStorage: true})
		require.NoError(t, err)
		b, err := New(ctx, nc, Config{Bucket: "scoped", Scope: "team-b", MemoryStorage: true})
		require.NoError(t, err)

		require.NoError(t, a.Create(ctx, types.NewLeaseRecord("lease", "team-a", 15)))
		_, err = b.Get(ctx, "lease")
		require.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestStore_DeletedKeyIsNotFound(t *testing.T) {
	_, nc := solotest.StartEmbeddedNATS(t)
	ctx := t.Context()
	kv := solotest.CreateJetStreamKV(t, nc, "deleted")
	store := NewWithKeyValue(kv, "default")

	require.NoError(t, store.Create(ctx, types.NewLeaseRecord("lease", "default", 15)))
	require.NoError(t, kv.Delete(ctx, Key("default", "lease")))

	_, err := store.Get(ctx, "lease")
	require.ErrorIs(t, err, types.ErrNotFound)

	// a deleted key can be created again
	require.NoError(t, store.Create(ctx, types.NewLeaseRecord("lease", "default", 15)))
}

func TestStore_NonNumericVersionConflicts(t *testing.T) {
	_, nc := solotest.StartEmbeddedNATS(t)
	store := NewWithKeyValue(solotest.CreateJetStreamKV(t, nc, "versions"), "default")

	_, err := store.CompareAndSwap(t.Context(), types.NewLeaseRecord("lease", "default", 15), "etag-abc")
	require.ErrorIs(t, err, types.ErrVersionConflict)
}

func TestStore_ClosedConnectionIsStoreError(t *testing.T) {
	_, nc := solotest.StartEmbeddedNATS(t)
	store := NewWithKeyValue(solotest.CreateJetStreamKV(t, nc, "closed"), "default")
	nc.Close()

	_, err := store.Get(t.Context(), "lease")
	require.ErrorIs(t, err, types.ErrStore)
	require.Equal(t, types.KindStore, types.KindOf(err))
}

func TestKey(t *testing.T) {
	tests := []struct {
		scope, name string
		want        string
	}{
		{"default", "leader-election-lease", "default.leader-election-lease"},
		{"", "leader-election-lease", "leader-election-lease"},
		{"team/a", "job_1", "team/a.job_1"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Key(tt.scope, tt.name))
	}

	t.Run("hashes keys with invalid characters", func(t *testing.T) {
		got := Key("my namespace", "leader election")
		require.True(t, strings.HasPrefix(got, "lease."))
		require.Len(t, got, len("lease.")+16)
		require.Equal(t, got, Key("my namespace", "leader election"))
		require.NotEqual(t, got, Key("my namespace", "other election"))
	})

	t.Run("hashes keys with leading or trailing dots", func(t *testing.T) {
		require.True(t, strings.HasPrefix(Key("", ".hidden"), "lease."))
		require.True(t, strings.HasPrefix(Key("", "trailing."), "lease."))
	})
}
