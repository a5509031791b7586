// Package clock abstracts wall-clock time so deadline-driven code
// (commissioning window, network join, control loop) can be tested
// without real sleeps.
package clock

import "time"

// Clock is the subset of the time package the lock core uses.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
