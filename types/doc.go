// Package types provides core type definitions and interfaces for the solo library.
//
// The types here are shared by the election core, the lease store
// implementations and the public solo package. Keeping them in a separate
// package avoids import cycles between solo and its internal packages.
//
// Key types:
//   - LeaseRecord: The shared, versioned record agents contend over
//   - LeaseStore: Get/Create/CompareAndSwap contract every backend implements
//   - Status: Per-tick leadership outcome (Leader or Follower)
//   - LeaseState: Conceptual state of the record relative to one identity
//   - Clock: Time source and cancellable delay
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
