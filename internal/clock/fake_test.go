package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	c.Sleep(100 * time.Millisecond)
	c.Advance(time.Second)

	assert.Equal(t, start.Add(1100*time.Millisecond), c.Now())
}

func TestFakeOnSleepHook(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	var seen []time.Time
	c.OnSleep(func(now time.Time) { seen = append(seen, now) })

	c.Sleep(time.Second)
	c.Sleep(time.Second)

	assert.Equal(t, []time.Time{start.Add(time.Second), start.Add(2 * time.Second)}, seen)
}
