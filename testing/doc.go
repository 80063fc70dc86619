// Package testing provides test utilities for solo and for LeaseStore
// implementations.
//
// Key utilities:
//   - RunLeaseStoreSuite: Conformance suite every LeaseStore must pass
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: Logger writing to the test log
//
// Example usage:
//
//	import (
//	    "testing"
//	    solotest "github.com/arloliu/solo/testing"
//	)
//
//	func TestMyStore(t *testing.T) {
//	    solotest.RunLeaseStoreSuite(t, func(t *testing.T) types.LeaseStore {
//	        return mystore.New(...)
//	    })
//	}
package testing
