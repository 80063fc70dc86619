package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/solo/types"
)

// LeaseMonitor samples a lease record and records violations of its
// progress rules:
//   - the transitions counter never decreases
//   - a change to a different non-empty holder increments transitions
//   - the record is never held without a renew time
type LeaseMonitor struct {
	store types.LeaseStore
	name  string

	mu         sync.Mutex
	last       *types.LeaseRecord
	holders    []string
	violations []string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLeaseMonitor creates a monitor for the named lease. Call Start to begin sampling.
func NewLeaseMonitor(store types.LeaseStore, name string) *LeaseMonitor {
	return &LeaseMonitor{store: store, name: name}
}

// Start samples the record every interval until Stop is called.
func (m *LeaseMonitor) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample(ctx)
			}
		}
	}()
}

// Stop ends sampling and returns the violations found.
func (m *LeaseMonitor) Stop() []string {
	m.cancel()
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.violations...)
}

// Holders returns the sequence of distinct non-empty holders observed.
func (m *LeaseMonitor) Holders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.holders...)
}

func (m *LeaseMonitor) sample(ctx context.Context) {
	rec, err := m.store.Get(ctx, m.name)
	if err != nil {
		// Missing record or a transient store error; nothing to compare.
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.HolderIdentity != "" && rec.RenewTime == nil {
		m.violations = append(m.violations, fmt.Sprintf("holder %s without renew time", rec.HolderIdentity))
	}

	if rec.HolderIdentity != "" && (len(m.holders) == 0 || m.holders[len(m.holders)-1] != rec.HolderIdentity) {
		m.holders = append(m.holders, rec.HolderIdentity)
	}

	prev := m.last
	m.last = rec
	if prev == nil {
		return
	}

	if rec.Transitions < prev.Transitions {
		m.violations = append(m.violations, fmt.Sprintf("transitions went back from %d to %d", prev.Transitions, rec.Transitions))
	}

	if rec.HolderIdentity != "" && prev.HolderIdentity != "" &&
		rec.HolderIdentity != prev.HolderIdentity && rec.Transitions <= prev.Transitions {
		m.violations = append(m.violations, fmt.Sprintf(
			"holder changed %s -> %s without a transition (%d)",
			prev.HolderIdentity, rec.HolderIdentity, rec.Transitions,
		))
	}
}
