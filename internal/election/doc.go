// Package election implements the lease acquisition, renewal and expiry state
// machine behind solo's single-leader election.
//
// # Model
//
// Every agent in a fleet runs an Elector against the same LeaseStore. There is
// no peer-to-peer traffic: the shared lease record is the only coordination
// medium and the store's compare-and-swap on the record version is the only
// arbiter. The Elector keeps no state between ticks beyond its identity and
// configuration; the conceptual state (NoLease, Unheld, HeldBySelf,
// HeldByOther, Expired) is derived from the record on every tick.
//
// # Tick
//
// One tick performs one read and at most one conditional write:
//
//  1. Get the record. If it is missing, Create a fresh unheld record
//     (ErrAlreadyExists means another agent won the race) and Get again.
//  2. Acquire if the record is unheld, or if its RenewTime is more than the
//     lease duration in the past: holder = self, RenewTime = now,
//     AcquireTime kept or set to now, Transitions + 1.
//  3. Renew if this identity holds an unexpired lease: RenewTime = now only.
//  4. Otherwise yield without writing.
//
// A successful write makes this identity Leader for the tick. A version
// conflict means another agent won; the tick reports Follower and does not
// retry. Any other failure abandons the tick as Follower and is reported in
// Result.Err for logging. Errors never escape Tick.
//
// # Transitions
//
// Transitions increments on every successful acquire-path write, including
// when an identity re-acquires its own expired lease. It counts acquisitions,
// not holder changes.
//
// # Concurrency Safety
//
// Tick and Release may be called from one goroutine at a time per Elector.
// Different Electors (in one process or many) may run concurrently against the
// same store.
package election
