// Package testutil provides shared helpers for multi-agent integration tests.
//
// It contains:
//   - AgentCluster: starts, stops and inspects a group of agents on one store
//   - LeaseMonitor: samples the lease record and checks it only moves forward
//   - FastConfig: agent configuration with short, real-time timings
//
// For NATS server setup and the store conformance suite, use the
// github.com/arloliu/solo/testing package.
package testutil
