// Package clock provides a tiny time abstraction so code that reasons about
// expiry can be driven by a deterministic clock in tests.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the production clock backed by time.Now.
type System struct{}

// New returns the system clock.
func New() System { return System{} }

func (System) Now() time.Time { return time.Now() }
