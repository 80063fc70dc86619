package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/solo/types"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	require.Equal(t, "solo", p.namespace)

	p.RecordTick(types.StatusLeader, types.ActionAcquire)
	p.RecordTick(types.StatusLeader, types.ActionRenew)
	p.RecordTick(types.StatusLeader, types.ActionRenew)

	require.InDelta(t, 1, testutil.ToFloat64(p.ticks.WithLabelValues("Leader", "acquire")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.ticks.WithLabelValues("Leader", "renew")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.isLeader), 0)

	p.RecordTick(types.StatusFollower, types.ActionYield)
	require.InDelta(t, 0, testutil.ToFloat64(p.isLeader), 0)

	p.RecordTickError("cas", types.KindVersionConflict)
	require.InDelta(t, 1, testutil.ToFloat64(p.tickErrors.WithLabelValues("cas", "version_conflict")), 0)

	p.RecordLeadershipChange("pod-0", true)
	p.RecordLeadershipChange("pod-0", false)
	require.InDelta(t, 1, testutil.ToFloat64(p.leadershipChanges.WithLabelValues("pod-0", "gained")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.leadershipChanges.WithLabelValues("pod-0", "lost")), 0)

	p.RecordTransitions(4)
	require.InDelta(t, 4, testutil.ToFloat64(p.observedTransition), 0)

	p.RecordStoreOperation("get", 0.002)
	count, err := testutil.GatherAndCount(reg, "solo_store_operation_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "custom")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}
