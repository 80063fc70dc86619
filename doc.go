// Package solo provides leader election over a single shared lease record.
//
// Any number of agents contend for one lease. The lease lives in a
// LeaseStore that offers read, create-if-absent and compare-and-swap; every
// agent polls it, and at most one agent at a time holds an unexpired lease.
// There is no leader-to-leader communication: the store's version check is
// the only arbiter.
//
// # Quick Start
//
//	import (
//	    "github.com/arloliu/solo"
//	    "github.com/arloliu/solo/store/memory"
//	)
//
//	cfg := solo.DefaultConfig()
//	cfg.Identity = solo.DefaultIdentity()
//
//	agent, err := solo.NewAgent(cfg, memory.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := agent.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Stop(context.Background())
//
//	if agent.IsLeader() {
//	    // do leader-only work
//	}
//
// # Election Round
//
// Every PollInterval the agent runs one tick:
//
//	read record ── missing ──> create (unheld) ──> read again
//	     │
//	     ├── unheld or expired ──> acquire (CAS)  ──> Leader on success
//	     ├── held by self      ──> renew (CAS)    ──> Leader on success
//	     └── held by other     ──> yield          ──> Follower
//
// A lease is expired when strictly more than its duration has passed since
// the last renewal. The duration stored in the record wins over the local
// configuration, so contenders with different settings still agree.
//
// A tick never retries a failed compare-and-swap. Losing a race, a store
// error or even a panic inside the tick turns into a Follower result for that
// tick; the next tick starts from a fresh read.
//
// # Lease Stores
//
// Backends live under store/ and share the LeaseStore contract:
//
//   - store/memory: in-process, for tests and single-binary demos
//   - store/natskv: NATS JetStream KV, revision as version
//   - store/kubelease: coordination.k8s.io/v1 Lease, resourceVersion as version
//   - store/etcd: etcd v3 transactions on ModRevision
//   - store/boltdb: local bbolt file, for processes sharing one host
//   - store/mongo: MongoDB document with a version field
//   - store/aztable: Azure Table entity with ETag as version
//
// The store package opens any of them from configuration.
//
// # Time
//
// Expiry is judged with the local clock against the timestamp the holder
// wrote. Contenders therefore need roughly synchronized clocks; skew beyond
// the gap between LeaseDuration and PollInterval can let a follower take an
// unexpired lease.
package solo
