// Package clock adapts k8s.io/utils/clock to types.Clock.
//
// Production code uses Real. Tests drive the election loop with
// k8s.io/utils/clock/testing.FakeClock, which satisfies types.Clock as is.
package clock

import (
	"time"

	k8sclock "k8s.io/utils/clock"

	"github.com/arloliu/solo/types"
)

// Real is the system clock with times normalized to UTC.
type Real struct {
	k8sclock.RealClock
}

// Compile-time assertion that Real implements Clock.
var _ types.Clock = Real{}

// NewReal returns the system clock.
func NewReal() Real {
	return Real{}
}

// Now returns the current time in UTC.
func (r Real) Now() time.Time {
	return r.RealClock.Now().UTC()
}
