package types

import "time"

// Clock supplies the current time and a delay primitive.
//
// The election core reads time only through Clock so that expiry can be
// tested deterministically with a fake clock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	// Callers select on it together with a cancellation signal.
	After(d time.Duration) <-chan time.Time
}
