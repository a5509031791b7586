// Package access validates presented pins and tracks the consecutive
// failure lockout that guards settings changes.
package access

import (
	"time"

	"github.com/rs/zerolog"
)

// MaxFailures is the number of consecutive failures that arms a lockout.
const MaxFailures = 3

// PinSource returns the configured pin, or "" when none is set.
type PinSource interface {
	Pin() string
}

// Guard compares pins against the stored one. It does no failure
// accounting; callers apply their own lockout policy.
type Guard struct {
	pins PinSource
	log  zerolog.Logger
}

func NewGuard(pins PinSource, log zerolog.Logger) *Guard {
	return &Guard{pins: pins, log: log}
}

// Check reports whether pin is accepted. With no pin configured every
// pin is accepted.
func (g *Guard) Check(pin string) bool {
	stored := g.pins.Pin()
	if stored == "" {
		g.log.Warn().Msg("no pin configured, accepting any pin")
		return true
	}
	return pin == stored
}

// Lockout counts consecutive authorization failures. Reaching
// MaxFailures starts a cooldown; the counter saturates there and the
// lockout arms once until the cooldown elapses.
type Lockout struct {
	cooldown  time.Duration
	failures  int
	startedAt time.Time
	log       zerolog.Logger
}

// LockoutState is a point-in-time copy of a Lockout.
type LockoutState struct {
	Failures  int
	StartedAt time.Time
}

func NewLockout(cooldown time.Duration, log zerolog.Logger) *Lockout {
	return &Lockout{cooldown: cooldown, log: log}
}

// Engaged reports whether the cooldown is running at now.
func (l *Lockout) Engaged(now time.Time) bool {
	return !l.startedAt.IsZero() && now.Sub(l.startedAt) < l.cooldown
}

// Remaining is the time left on the cooldown, or 0 when not engaged.
func (l *Lockout) Remaining(now time.Time) time.Duration {
	if !l.Engaged(now) {
		return 0
	}
	return l.cooldown - now.Sub(l.startedAt)
}

// RecordFailure counts one failure and reports whether this failure
// armed the lockout. Failures while engaged are not counted.
func (l *Lockout) RecordFailure(now time.Time) bool {
	l.Tick(now)
	if l.Engaged(now) {
		return false
	}
	if l.failures < MaxFailures {
		l.failures++
	}
	if l.failures == MaxFailures && l.startedAt.IsZero() {
		l.startedAt = now
		l.log.Warn().Dur("cooldown", l.cooldown).Msg("authorization lockout started")
		return true
	}
	return false
}

// RecordSuccess resets the consecutive failure count.
func (l *Lockout) RecordSuccess() {
	if l.startedAt.IsZero() {
		l.failures = 0
	}
}

// Tick clears the lockout once the cooldown has elapsed.
func (l *Lockout) Tick(now time.Time) {
	if l.startedAt.IsZero() || now.Sub(l.startedAt) < l.cooldown {
		return
	}
	l.failures = 0
	l.startedAt = time.Time{}
	l.log.Info().Msg("authorization lockout cleared")
}

func (l *Lockout) Failures() int { return l.failures }

func (l *Lockout) Snapshot() LockoutState {
	return LockoutState{Failures: l.failures, StartedAt: l.startedAt}
}
