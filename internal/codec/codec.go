// Package codec encodes lease records for stores that persist opaque bytes.
//
// The wire form is a JSON object with the field names used by Kubernetes
// coordination Leases, so a record written by one backend reads naturally in
// another and in kubectl-style tooling. The version token is never part of
// the payload; each store carries it in its native revision stamp.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arloliu/solo/types"
)

// wireRecord is the persisted JSON layout.
type wireRecord struct {
	Name                 string     `json:"name"`
	Namespace            string     `json:"namespace,omitempty"`
	HolderIdentity       string     `json:"holderIdentity,omitempty"`
	LeaseDurationSeconds int32      `json:"leaseDurationSeconds"`
	AcquireTime          *time.Time `json:"acquireTime,omitempty"`
	RenewTime            *time.Time `json:"renewTime,omitempty"`
	LeaseTransitions     int32      `json:"leaseTransitions"`
}

// Marshal encodes rec without its version.
//
// Parameters:
//   - rec: Record to encode
//
// Returns:
//   - []byte: JSON payload
//   - error: ErrInvalidRecord if rec fails validation
func Marshal(rec *types.LeaseRecord) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	w := wireRecord{
		Name:                 rec.Name,
		Namespace:            rec.Scope,
		HolderIdentity:       rec.HolderIdentity,
		LeaseDurationSeconds: rec.LeaseDurationSeconds,
		AcquireTime:          utc(rec.AcquireTime),
		RenewTime:            utc(rec.RenewTime),
		LeaseTransitions:     rec.Transitions,
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("%w: encode lease %q: %w", types.ErrStore, rec.Name, err)
	}

	return data, nil
}

// Unmarshal decodes a payload and stamps it with version.
//
// Parameters:
//   - data: JSON payload produced by Marshal
//   - version: Store-native version of the payload
//
// Returns:
//   - *types.LeaseRecord: Decoded record
//   - error: ErrStore wrapping the decode failure
func Unmarshal(data []byte, version types.Version) (*types.LeaseRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: decode lease: %w", types.ErrStore, err)
	}

	return &types.LeaseRecord{
		Name:                 w.Name,
		Scope:                w.Namespace,
		HolderIdentity:       w.HolderIdentity,
		LeaseDurationSeconds: w.LeaseDurationSeconds,
		AcquireTime:          w.AcquireTime,
		RenewTime:            w.RenewTime,
		Transitions:          w.LeaseTransitions,
		Version:              version,
	}, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()

	return &u
}
