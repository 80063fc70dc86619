package aztable

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/storage"
	"github.com/stretchr/testify/require"

	solotest "github.com/arloliu/solo/testing"
	"github.com/arloliu/solo/types"
)

// fakeTable emulates table service entity semantics: inserts fail with 409
// on an existing key and If-Match replaces fail with 412 on a stale ETag.
type fakeTable struct {
	mu       sync.Mutex
	seq      int
	entities map[string]*storage.Entity
	err      error
	timeouts []uint
}

func newFakeTable() *fakeTable {
	return &fakeTable{entities: map[string]*storage.Entity{}}
}

func serviceError(code int, name string) error {
	return storage.AzureStorageServiceError{StatusCode: code, Code: name, Message: name}
}

func (f *fakeTable) nextEtag() string {
	f.seq++
	return fmt.Sprintf(`W/"datetime'2025-01-01T00%%3A00%%3A%02d.0000000Z'"`, f.seq)
}

func (f *fakeTable) Get(partition, row string, timeout uint) (*storage.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timeouts = append(f.timeouts, timeout)
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entities[partition+"|"+row]
	if !ok {
		return nil, serviceError(http.StatusNotFound, "ResourceNotFound")
	}

	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}

	return &storage.Entity{PartitionKey: partition, RowKey: row, OdataEtag: e.OdataEtag, Properties: props}, nil
}

func (f *fakeTable) Insert(partition, row string, props map[string]any, timeout uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timeouts = append(f.timeouts, timeout)
	if f.err != nil {
		return "", f.err
	}
	key := partition + "|" + row
	if _, ok := f.entities[key]; ok {
		return "", serviceError(http.StatusConflict, "EntityAlreadyExists")
	}
	etag := f.nextEtag()
	f.entities[key] = &storage.Entity{PartitionKey: partition, RowKey: row, OdataEtag: etag, Properties: props}

	return etag, nil
}

func (f *fakeTable) Replace(partition, row string, props map[string]any, etag string, timeout uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timeouts = append(f.timeouts, timeout)
	if f.err != nil {
		return "", f.err
	}
	key := partition + "|" + row
	cur, ok := f.entities[key]
	if !ok {
		return "", serviceError(http.StatusNotFound, "ResourceNotFound")
	}
	if cur.OdataEtag != etag {
		return "", serviceError(http.StatusPreconditionFailed, "UpdateConditionNotSatisfied")
	}
	next := f.nextEtag()
	f.entities[key] = &storage.Entity{PartitionKey: partition, RowKey: row, OdataEtag: next, Properties: props}

	return next, nil
}

func TestStore_Conformance(t *testing.T) {
	solotest.RunLeaseStoreSuite(t, func(t *testing.T) types.LeaseStore {
		return newStore(newFakeTable(), "default")
	})
}

func TestStore_EntityLayout(t *testing.T) {
	table := newFakeTable()
	store := newStore(table, "")
	ctx := t.Context()

	rec := types.NewLeaseRecord("lease", "default", 15)
	rec.HolderIdentity = "pod-a"
	require.NoError(t, store.Create(ctx, rec))

	entity, ok := table.entities["default|lease"]
	require.True(t, ok, "partition defaults to %q", DefaultPartition)
	require.Equal(t, "pod-a", entity.Properties[holderProperty])
	require.JSONEq(t,
		`{"name":"lease","namespace":"default","holderIdentity":"pod-a","leaseDurationSeconds":15,"leaseTransitions":0}`,
		entity.Properties[recordProperty].(string))

	got, err := store.Get(ctx, "lease")
	require.NoError(t, err)
	require.Equal(t, types.Version(entity.OdataEtag), got.Version)
}

func TestStore_Errors(t *testing.T) {
	t.Run("service failures are store errors", func(t *testing.T) {
		table := newFakeTable()
		table.err = serviceError(http.StatusForbidden, "AuthorizationFailure")
		store := newStore(table, "default")
		ctx := t.Context()

		_, err := store.Get(ctx, "lease")
		require.ErrorIs(t, err, types.ErrStore)

		err = store.Create(ctx, types.NewLeaseRecord("lease", "default", 15))
		require.Equal(t, types.KindStore, types.KindOf(err))

		_, err = store.CompareAndSwap(ctx, types.NewLeaseRecord("lease", "default", 15), `W/"x"`)
		require.Equal(t, types.KindStore, types.KindOf(err))
	})

	t.Run("entity without record property is a store error", func(t *testing.T) {
		table := newFakeTable()
		table.entities["default|lease"] = &storage.Entity{OdataEtag: "e", Properties: map[string]any{"Other": 1}}

		_, err := newStore(table, "default").Get(t.Context(), "lease")
		require.ErrorIs(t, err, types.ErrStore)
	})

	t.Run("empty etag conflicts", func(t *testing.T) {
		_, err := newStore(newFakeTable(), "default").CompareAndSwap(t.Context(), types.NewLeaseRecord("lease", "default", 15), types.NoVersion)
		require.ErrorIs(t, err, types.ErrVersionConflict)
	})

	t.Run("cancelled context fails before calling the service", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := newStore(newFakeTable(), "default").Get(ctx, "lease")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestTimeoutSeconds(t *testing.T) {
	secs, err := timeoutSeconds(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint(defaultTimeoutSeconds), secs)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	secs, err = timeoutSeconds(ctx)
	require.NoError(t, err)
	require.Equal(t, uint(3), secs)
}

func TestStore_ServerTimeout(t *testing.T) {
	table := newFakeTable()
	store := newStore(table, "default")

	ctx, cancel := context.WithTimeout(t.Context(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, store.Create(ctx, types.NewLeaseRecord("lease", "default", 15)))
	rec, err := store.Get(ctx, "lease")
	require.NoError(t, err)
	_, err = store.CompareAndSwap(ctx, rec, rec.Version)
	require.NoError(t, err)

	// insert, get, replace all carry the context deadline
	require.Equal(t, []uint{3, 3, 3}, table.timeouts)
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, http.StatusConflict, statusCode(fmt.Errorf("wrapped: %w", serviceError(http.StatusConflict, "EntityAlreadyExists"))))
	require.Equal(t, 0, statusCode(fmt.Errorf("plain")))
}
