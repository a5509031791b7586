// Package perception powers the vision co-processor on demand and
// interprets its status stream.
package perception

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/internal/notify"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// MaxStrikes is the number of intruder sightings that extend a session.
// One more powers the co-processor off and starts the extended lockout.
const MaxStrikes = 3

// CommandSink delivers commands to the co-processor.
type CommandSink interface {
	Send(cmd schema.VisionCommand) error
}

// Unlocker opens the door on behalf of source.
type Unlocker interface {
	Unlock(source string)
}

// EventSink records telemetry events.
type EventSink interface {
	Log(event string, data map[string]any)
}

// EventFunc adapts a function to EventSink.
type EventFunc func(event string, data map[string]any)

func (f EventFunc) Log(event string, data map[string]any) { f(event, data) }

// State is the controller's coarse state.
type State int

const (
	Idle State = iota
	Running
	ExtendedLockout
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ExtendedLockout:
		return "extended_lockout"
	default:
		return "idle"
	}
}

// Session is the co-processor session state. AccumulatedUptime only
// advances when an intruder sighting extends the session.
type Session struct {
	Running           bool
	StartedAt         time.Time
	AccumulatedUptime time.Duration
	Strikes           int
	LockoutSince      time.Time
}

type Config struct {
	// MaxUptime bounds a session segment with no terminal status.
	MaxUptime time.Duration
	// NotifyMotion pushes a notification on every motion wake.
	NotifyMotion bool
}

// Controller is owned by the control loop and is not safe for
// concurrent use.
type Controller struct {
	cfg      Config
	rail     device.PowerRail
	sink     CommandSink
	unlocker Unlocker
	events   EventSink
	notifier notify.Sender
	log      zerolog.Logger
	session  Session
}

func New(cfg Config, rail device.PowerRail, sink CommandSink, unlocker Unlocker, events EventSink, notifier notify.Sender, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		rail:     rail,
		sink:     sink,
		unlocker: unlocker,
		events:   events,
		notifier: notifier,
		log:      log,
	}
}

func (c *Controller) State() State {
	switch {
	case c.session.Running:
		return Running
	case !c.session.LockoutSince.IsZero():
		return ExtendedLockout
	default:
		return Idle
	}
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session { return c.session }

// Motion wakes the co-processor unless it is already running. It
// reports whether a wake happened.
func (c *Controller) Motion(now time.Time) bool {
	if c.session.Running {
		return false
	}
	if c.cfg.NotifyMotion {
		c.notifier.Notify("Motion Detected", "Waking up Vision System...")
	}
	c.Wake(now, schema.VisionCommand{Cmd: schema.VisionCmdOn})
	return true
}

// Wake powers the co-processor and sends cmd. During an extended
// lockout the command asks the co-processor to skip face recognition.
// Waking a running session restarts its clock.
func (c *Controller) Wake(now time.Time, cmd schema.VisionCommand) {
	if err := c.rail.SetPower(true); err != nil {
		c.log.Error().Err(err).Msg("co-processor power on failed")
	}
	if !c.session.LockoutSince.IsZero() {
		cmd.FaceTimeout = true
	}
	if err := c.sink.Send(cmd); err != nil {
		c.log.Error().Err(err).Str("cmd", cmd.Cmd).Msg("co-processor command failed")
	}
	c.session.Running = true
	c.session.StartedAt = now
	c.log.Info().Str("cmd", cmd.Cmd).Bool("face_timeout", cmd.FaceTimeout).Msg("K230D powered on")
}

// HandleStatus applies one co-processor status. Statuses that arrive
// while the co-processor is off are ignored.
func (c *Controller) HandleStatus(now time.Time, st schema.VisionStatus) {
	if !c.session.Running {
		c.log.Debug().Str("status", st.Status).Msg("status while powered off, ignored")
		return
	}
	switch st.Status {
	case schema.VisionMatch:
		c.unlocker.Unlock(st.Name)
		c.events.Log("unlock", map[string]any{"method": "face", "success": true, "name": st.Name})
		c.session.Strikes = 0
		c.powerOff(now)
	case schema.VisionIntruder:
		c.notifier.Notify("Intruder Alert!", "Unknown face detected at door.")
		c.session.Strikes++
		if c.session.Strikes <= MaxStrikes {
			c.session.AccumulatedUptime += now.Sub(c.session.StartedAt)
			c.session.StartedAt = now
			c.log.Info().Int("strikes", c.session.Strikes).Msg("intruder, extending session")
		} else {
			if c.session.LockoutSince.IsZero() {
				c.session.LockoutSince = now
			}
			c.log.Warn().Int("strikes", c.session.Strikes).Msg("face unlock disabled until pin entry")
			c.powerOff(now)
		}
		c.events.Log("unlock", map[string]any{"method": "face", "success": false})
	case schema.VisionAwake:
		boot := now.Sub(c.session.StartedAt)
		c.events.Log("boot", map[string]any{"bootTime": boot.Seconds()})
	default:
		c.log.Debug().Str("status", st.Status).Msg("unknown co-processor status")
	}
}

// Tick forces a power-off once a session segment outlives MaxUptime.
func (c *Controller) Tick(now time.Time) {
	if !c.session.Running || now.Sub(c.session.StartedAt) <= c.cfg.MaxUptime {
		return
	}
	c.log.Info().Msg("K230D timeout: no face detected, powering down")
	c.powerOff(now)
}

// PinEntered clears the extended lockout and the strikes when a lockout
// is in effect. It reports whether anything was cleared.
func (c *Controller) PinEntered(now time.Time) bool {
	if c.session.LockoutSince.IsZero() || now.Before(c.session.LockoutSince) {
		return false
	}
	c.session.LockoutSince = time.Time{}
	c.session.Strikes = 0
	c.log.Info().Msg("face unlock re-enabled")
	return true
}

func (c *Controller) powerOff(now time.Time) {
	if err := c.rail.SetPower(false); err != nil {
		c.log.Error().Err(err).Msg("co-processor power off failed")
	}
	uptime := c.session.AccumulatedUptime + now.Sub(c.session.StartedAt)
	c.events.Log("power_off", map[string]any{"uptime": uptime.Seconds()})
	c.session.Running = false
	c.session.StartedAt = time.Time{}
	c.session.AccumulatedUptime = 0
	c.log.Info().Dur("uptime", uptime).Msg("K230D powered off")
}
