package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/arloliu/solo/types"
)

const ns = "solo.leases"

func TestStore_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes the document", func(mt *mtest.T) {
		renewed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "default/lease"},
			{Key: "name", Value: "lease"},
			{Key: "namespace", Value: "default"},
			{Key: "holderIdentity", Value: "pod-a"},
			{Key: "leaseDurationSeconds", Value: int32(15)},
			{Key: "renewTime", Value: renewed},
			{Key: "leaseTransitions", Value: int32(2)},
			{Key: "version", Value: int64(9)},
		}))

		store := NewWithCollection(mt.Coll, "default")
		rec, err := store.Get(mt.Context(), "lease")
		require.NoError(mt, err)
		require.Equal(mt, "pod-a", rec.HolderIdentity)
		require.Equal(mt, "default", rec.Scope)
		require.Equal(mt, int32(15), rec.LeaseDurationSeconds)
		require.Equal(mt, int32(2), rec.Transitions)
		require.Equal(mt, types.Version("9"), rec.Version)
		require.Nil(mt, rec.AcquireTime)
		require.True(mt, renewed.Equal(*rec.RenewTime))

		filter := mt.GetStartedEvent().Command.Lookup("filter", "_id")
		require.Equal(mt, "default/lease", filter.StringValue())
	})

	mt.Run("missing document is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewWithCollection(mt.Coll, "default").Get(mt.Context(), "lease")
		require.ErrorIs(mt, err, types.ErrNotFound)
	})

	mt.Run("server error is a store error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Name: "Unauthorized", Message: "not authorized",
		}))

		_, err := NewWithCollection(mt.Coll, "default").Get(mt.Context(), "lease")
		require.ErrorIs(mt, err, types.ErrStore)
	})
}

func TestStore_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserts at version one", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := NewWithCollection(mt.Coll, "default").Create(mt.Context(), types.NewLeaseRecord("lease", "default", 15))
		require.NoError(mt, err)

		doc := mt.GetStartedEvent().Command.Lookup("documents", "0")
		require.Equal(mt, "default/lease", doc.Document().Lookup("_id").StringValue())
		require.Equal(mt, int64(1), doc.Document().Lookup("version").Int64())
		_, err = doc.Document().LookupErr("holderIdentity")
		require.Error(mt, err, "absent holder is not written")
	})

	mt.Run("duplicate key is already exists", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		err := NewWithCollection(mt.Coll, "default").Create(mt.Context(), types.NewLeaseRecord("lease", "default", 15))
		require.ErrorIs(mt, err, types.ErrAlreadyExists)
	})

	mt.Run("invalid record is rejected before writing", func(mt *mtest.T) {
		err := NewWithCollection(mt.Coll, "default").Create(mt.Context(), types.NewLeaseRecord("lease", "default", 0))
		require.ErrorIs(mt, err, types.ErrInvalidRecord)
	})
}

func TestStore_CompareAndSwap(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("matching version is replaced and bumped", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		rec := types.NewLeaseRecord("lease", "default", 15)
		rec.HolderIdentity = "pod-b"
		version, err := NewWithCollection(mt.Coll, "default").CompareAndSwap(mt.Context(), rec, "4")
		require.NoError(mt, err)
		require.Equal(mt, types.Version("5"), version)

		update := mt.GetStartedEvent().Command.Lookup("updates", "0")
		require.Equal(mt, int64(4), update.Document().Lookup("q", "version").Int64())
		require.Equal(mt, int64(5), update.Document().Lookup("u", "version").Int64())
		require.Equal(mt, "pod-b", update.Document().Lookup("u", "holderIdentity").StringValue())
	})

	mt.Run("no match is a version conflict", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		_, err := NewWithCollection(mt.Coll, "default").CompareAndSwap(mt.Context(), types.NewLeaseRecord("lease", "default", 15), "4")
		require.ErrorIs(mt, err, types.ErrVersionConflict)
	})

	mt.Run("non-numeric version conflicts without a round trip", func(mt *mtest.T) {
		_, err := NewWithCollection(mt.Coll, "default").CompareAndSwap(mt.Context(), types.NewLeaseRecord("lease", "default", 15), "etag")
		require.ErrorIs(mt, err, types.ErrVersionConflict)
	})
}

func TestStore_ID(t *testing.T) {
	require.Equal(t, "lease", NewWithCollection(nil, "").id("lease"))
	require.Equal(t, "prod/lease", NewWithCollection(nil, "prod").id("lease"))
}
