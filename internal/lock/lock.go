// Package lock is the control loop. One goroutine owns every piece of
// runtime state and polls inputs; other goroutines only feed it through
// channels.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/access"
	"github.com/celerix-dev/celerix-lock/internal/battery"
	"github.com/celerix-dev/celerix-lock/internal/clock"
	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/internal/notify"
	"github.com/celerix-dev/celerix-lock/internal/perception"
	"github.com/celerix-dev/celerix-lock/internal/remote"
	"github.com/celerix-dev/celerix-lock/internal/settings"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

var ErrQueueFull = errors.New("vision status queue full")

// Unlock attributions for local inputs.
const (
	SourceManual   = "Manual"
	SourcePasscode = "Passcode"
)

const maxPasscode = 12

// Profile is the configured identity shown in notifications and status.
type Profile interface {
	Owner() string
	LockName() string
	WifiSSID() string
}

type Config struct {
	LoopInterval   time.Duration
	MotionDebounce time.Duration
}

type Deps struct {
	Clock      clock.Clock
	Sensors    device.Sensors
	Door       *Door
	Guard      *access.Guard
	Lockout    *access.Lockout
	Perception *perception.Controller
	Remote     *remote.Manager
	Settings   *settings.Handler
	Battery    *battery.Monitor
	Profile    Profile
	Notifier   notify.Sender
}

// request is a local API call executed on the loop goroutine. A request
// whose caller has given up is not executed.
type request struct {
	ctx context.Context
	fn  func(now time.Time)
}

// Lock aggregates the runtime state of one device.
type Lock struct {
	cfg Config
	Deps
	log zerolog.Logger

	vision   chan schema.VisionStatus
	requests chan request

	motionAt time.Time
	passcode strings.Builder
}

func New(cfg Config, deps Deps, log zerolog.Logger) *Lock {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Lock{
		cfg:      cfg,
		Deps:     deps,
		log:      log,
		vision:   make(chan schema.VisionStatus, 16),
		requests: make(chan request),
	}
}

// Vision is the channel co-processor statuses are delivered on.
func (l *Lock) Vision() chan<- schema.VisionStatus { return l.vision }

// InjectVision queues a status without blocking.
func (l *Lock) InjectVision(st schema.VisionStatus) error {
	select {
	case l.vision <- st:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run steps the loop every LoopInterval until ctx is done.
func (l *Lock) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.LoopInterval)
	defer ticker.Stop()
	l.log.Info().Dur("interval", l.cfg.LoopInterval).Msg("control loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("control loop stopped")
			return ctx.Err()
		case req := <-l.requests:
			l.serve(req, l.Clock.Now())
		case <-ticker.C:
			l.Step(ctx, l.Clock.Now())
		}
	}
}

// Step runs one polling pass.
func (l *Lock) Step(ctx context.Context, now time.Time) {
	if l.Sensors.Button() {
		l.Door.Unlock(SourceManual)
	}
	l.pollMotion(now)
	l.pollVision(now)
	l.pollKeypad(now)
	l.pollRequests(now)

	if l.Remote != nil {
		l.Remote.Maintain(ctx, now)
		l.Remote.Poll(now)
		l.Remote.Tick(now)
	}
	l.Perception.Tick(now)
	l.Lockout.Tick(now)
	l.Door.Tick(now)
	if l.Battery != nil {
		l.Battery.Tick(now)
	}
}

func (l *Lock) pollMotion(now time.Time) {
	if l.Sensors.Motion() && l.motionAt.IsZero() {
		l.motionAt = now
	}
	if l.motionAt.IsZero() || now.Sub(l.motionAt) < l.cfg.MotionDebounce {
		return
	}
	l.motionAt = time.Time{}
	l.Perception.Motion(now)
}

func (l *Lock) pollVision(now time.Time) {
	for {
		select {
		case st := <-l.vision:
			if l.Remote != nil {
				l.Remote.NoteActivity(now)
			}
			l.Perception.HandleStatus(now, st)
		default:
			return
		}
	}
}

func (l *Lock) pollKeypad(now time.Time) {
	for {
		key, ok := l.Sensors.NextKey()
		if !ok {
			return
		}
		switch key.Kind {
		case device.KeyDigit:
			if l.passcode.Len() < maxPasscode {
				l.passcode.WriteRune(key.Digit)
			}
		case device.KeyClear:
			l.passcode.Reset()
		case device.KeyBell:
			l.bell(now)
		}
	}
}

func (l *Lock) bell(now time.Time) {
	code := l.passcode.String()
	l.passcode.Reset()
	if code == "" {
		l.Notifier.Notify("Doorbell", "Someone is at "+l.Profile.Owner()+"'s "+l.Profile.LockName()+"!")
		if l.Remote != nil {
			l.Remote.Activate(now)
		}
		return
	}
	if !l.Guard.Check(code) {
		l.log.Warn().Msg("wrong passcode entered")
		return
	}
	l.Door.Unlock(SourcePasscode)
	l.Perception.PinEntered(now)
}

func (l *Lock) pollRequests(now time.Time) {
	for {
		select {
		case req := <-l.requests:
			l.serve(req, now)
		default:
			return
		}
	}
}

func (l *Lock) serve(req request, now time.Time) {
	if req.ctx.Err() != nil {
		l.log.Debug().Err(req.ctx.Err()).Msg("local request expired before it ran")
		return
	}
	req.fn(now)
}

// call runs fn on the loop goroutine and returns its result. The result
// travels over a buffered channel so a caller that times out never
// shares memory with the loop.
func call[T any](ctx context.Context, l *Lock, fn func(now time.Time) T) (T, error) {
	var zero T
	out := make(chan T, 1)
	req := request{ctx: ctx, fn: func(now time.Time) { out <- fn(now) }}
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-out:
		return v, nil
	case <-ctx.Done():
		// The loop may have finished just as the deadline fired.
		select {
		case v := <-out:
			return v, nil
		default:
			return zero, ctx.Err()
		}
	}
}
