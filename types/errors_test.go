package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"not found", ErrNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("get lease: %w", ErrNotFound), KindNotFound},
		{"already exists", ErrAlreadyExists, KindAlreadyExists},
		{"version conflict", fmt.Errorf("cas: %w", ErrVersionConflict), KindVersionConflict},
		{"store", fmt.Errorf("%w: %w", ErrStore, errors.New("boom")), KindStore},
		{"unclassified", errors.New("boom"), KindStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrVersionConflict,
		ErrStore,
		ErrInvalidRecord,
		ErrInvalidConfig,
		ErrLeaseStoreRequired,
		ErrAlreadyStarted,
		ErrNotStarted,
		ErrConnectivity,
	}

	for i, a := range allErrors {
		for j, b := range allErrors {
			if i != j {
				require.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestStringers(t *testing.T) {
	require.Equal(t, "Leader", StatusLeader.String())
	require.Equal(t, "Follower", StatusFollower.String())
	require.Equal(t, "Unknown", Status(42).String())
	require.True(t, StatusLeader.IsLeader())
	require.False(t, StatusFollower.IsLeader())

	require.Equal(t, "acquire", ActionAcquire.String())
	require.Equal(t, "renew", ActionRenew.String())
	require.Equal(t, "yield", ActionYield.String())
	require.Equal(t, "release", ActionRelease.String())
	require.Equal(t, "none", ActionNone.String())

	require.Equal(t, "version_conflict", KindVersionConflict.String())
	require.Equal(t, "HeldByOther", LeaseStateHeldByOther.String())
}
