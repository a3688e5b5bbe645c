// Package clock provides the wall-clock and one-shot timer primitive used by
// the reminder engine, with a deterministic fake for tests.
package clock

import "time"

// Clock reads the current time and schedules one-shot callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc calls fn in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellation handle for a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or is running.
	Stop() bool
}

// Real is the Clock backed by the Go runtime.
type Real struct{}

// New returns the runtime clock.
func New() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
