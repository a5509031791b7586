package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celerix-dev/celerix-lock/internal/logger"
)

type pinSource string

func (p pinSource) Pin() string { return string(p) }

func TestGuardFailOpenWithoutPin(t *testing.T) {
	g := NewGuard(pinSource(""), logger.NewTestLogger())
	for _, pin := range []string{"", "0000", "anything"} {
		assert.True(t, g.Check(pin), pin)
	}
}

func TestGuardExactMatch(t *testing.T) {
	g := NewGuard(pinSource("1234"), logger.NewTestLogger())
	assert.True(t, g.Check("1234"))
	assert.False(t, g.Check("12345"))
	assert.False(t, g.Check(" 1234"))
	assert.False(t, g.Check(""))
}

func TestLockoutArmsOnThirdFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLockout(30*time.Minute, logger.NewTestLogger())

	assert.False(t, l.RecordFailure(now))
	assert.False(t, l.RecordFailure(now))
	assert.False(t, l.Engaged(now))
	assert.True(t, l.RecordFailure(now))
	assert.True(t, l.Engaged(now))
	assert.Equal(t, MaxFailures, l.Failures())

	later := now.Add(10 * time.Minute)
	assert.False(t, l.RecordFailure(later), "fourth attempt must not re-arm")
	assert.Equal(t, MaxFailures, l.Failures())
	assert.Equal(t, 20*time.Minute, l.Remaining(later))
	assert.Equal(t, now, l.Snapshot().StartedAt)
}

func TestLockoutResetsAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLockout(30*time.Minute, logger.NewTestLogger())
	for i := 0; i < MaxFailures; i++ {
		l.RecordFailure(now)
	}

	l.Tick(now.Add(29 * time.Minute))
	assert.True(t, l.Engaged(now.Add(29*time.Minute)))

	after := now.Add(30 * time.Minute)
	l.Tick(after)
	assert.False(t, l.Engaged(after))
	assert.Equal(t, LockoutState{}, l.Snapshot())
	assert.Zero(t, l.Remaining(after))
}

func TestLockoutSuccessResetsCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLockout(30*time.Minute, logger.NewTestLogger())
	l.RecordFailure(now)
	l.RecordFailure(now)
	l.RecordSuccess()
	assert.Zero(t, l.Failures())

	assert.False(t, l.RecordFailure(now))
	assert.False(t, l.Engaged(now))
}
