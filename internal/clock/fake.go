package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time stands still until Advance
// or Sleep is called; Sleep advances the clock by the requested
// duration instead of blocking, so polling loops run to their deadline
// instantly.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	onSleep func(now time.Time)
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Sleep advances the clock by d and then runs the OnSleep hook, if any.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	if d > 0 {
		c.current = c.current.Add(d)
	}
	now := c.current
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// OnSleep registers a hook invoked after every Sleep with the new time.
// Tests use it to inject events at a given point in a polling loop.
func (c *FakeClock) OnSleep(fn func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = fn
}
