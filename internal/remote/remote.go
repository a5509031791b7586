// Package remote manages the on-demand publish/subscribe session used
// for remote commands and telemetry.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

var ErrNotConnected = errors.New("transport not connected")

// RemoteSource is the unlock attribution for remote commands.
const RemoteSource = "Remote App"

// Transport is a topic based publish/subscribe client. Subscription
// callbacks run on the transport's own goroutine.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Subscribe(topic string, fn func(payload []byte)) error
	Publish(topic string, payload []byte) error
	Disconnect()
}

// Unlocker opens the door on behalf of source.
type Unlocker interface {
	Unlock(source string)
}

// Waker powers the co-processor with a command.
type Waker interface {
	Wake(now time.Time, cmd schema.VisionCommand)
}

type Config struct {
	LockID       string
	CommandTopic string
	LogTopic     string
	// Idle ends the session after this long without a command.
	Idle        time.Duration
	DialTimeout time.Duration
	// RetryInterval spaces the start of reconnect attempts while active.
	// It defaults to DialTimeout.
	RetryInterval time.Duration
	QueueSize     int
}

// Manager owns the session. Everything except the subscription callback
// and the dial task runs on the control loop goroutine.
type Manager struct {
	cfg       Config
	transport Transport
	unlocker  Unlocker
	waker     Waker
	log       zerolog.Logger
	inbox     chan []byte

	active       bool
	lastActivity time.Time
	lastAttempt  time.Time
	nowFn        func() time.Time

	// dial is non-nil while a dial task is outstanding. It is set and
	// cleared only on the loop; the task sends exactly one result.
	dial       chan error
	cancelDial context.CancelFunc
}

func New(cfg Config, transport Transport, unlocker Unlocker, waker Waker, log zerolog.Logger) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = cfg.DialTimeout
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		unlocker:  unlocker,
		waker:     waker,
		log:       log,
		inbox:     make(chan []byte, cfg.QueueSize),
		nowFn:     time.Now,
	}
}

// Active reports whether the session is enabled.
func (m *Manager) Active() bool { return m.active }

func (m *Manager) LastActivity() time.Time { return m.lastActivity }

// Activate enables the session and refreshes the inactivity clock. The
// connection itself is made by Maintain.
func (m *Manager) Activate(now time.Time) {
	if !m.active {
		m.active = true
		m.lastAttempt = time.Time{}
		m.log.Info().Msg("remote session started")
	}
	m.lastActivity = now
}

// NoteActivity refreshes the inactivity clock.
func (m *Manager) NoteActivity(now time.Time) {
	m.lastActivity = now
}

// Tick ends an active session once it has been idle past the timeout.
func (m *Manager) Tick(now time.Time) {
	if m.active && now.Sub(m.lastActivity) > m.cfg.Idle {
		m.Deactivate()
	}
}

// Deactivate disconnects and disables the session.
func (m *Manager) Deactivate() {
	if !m.active {
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
	}
	m.transport.Disconnect()
	m.active = false
	m.log.Info().Msg("remote session terminated to save battery")
}

// Maintain collects a finished dial and starts a new one when an active
// session is down. Connecting and subscribing run in a background task
// so the loop never waits on the broker; at most one task is
// outstanding.
func (m *Manager) Maintain(ctx context.Context, now time.Time) {
	if m.dial != nil {
		select {
		case err := <-m.dial:
			m.finishDial(err)
		default:
			return
		}
	}
	if !m.active || m.transport.Connected() {
		return
	}
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.cfg.RetryInterval {
		return
	}
	m.lastAttempt = now
	m.startDial(ctx)
}

func (m *Manager) dialing() bool { return m.dial != nil }

func (m *Manager) startDial(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	done := make(chan error, 1)
	m.dial, m.cancelDial = done, cancel

	go func() {
		defer cancel()
		if err := m.transport.Connect(dialCtx); err != nil {
			done <- err
			return
		}
		if err := m.transport.Subscribe(m.cfg.CommandTopic, m.enqueue); err != nil {
			// Drop the connection so the next attempt redials and resubscribes.
			m.transport.Disconnect()
			done <- fmt.Errorf("subscribe %s: %w", m.cfg.CommandTopic, err)
			return
		}
		done <- nil
	}()
}

func (m *Manager) finishDial(err error) {
	m.dial, m.cancelDial = nil, nil
	switch {
	case err != nil:
		m.log.Warn().Err(err).Msg("remote connect failed")
	case !m.active:
		m.transport.Disconnect()
		m.log.Debug().Msg("remote session ended while connecting")
	default:
		m.log.Info().Str("topic", m.cfg.CommandTopic).Msg("remote connected")
	}
}

func (m *Manager) enqueue(payload []byte) {
	select {
	case m.inbox <- payload:
	default:
		m.log.Warn().Int("queue", cap(m.inbox)).Msg("remote command queue full, dropping command")
	}
}

// Poll drains queued commands. Commands that arrive after the session
// ended are discarded.
func (m *Manager) Poll(now time.Time) {
	for {
		select {
		case payload := <-m.inbox:
			if !m.active {
				m.log.Debug().Msg("remote command after session end, dropped")
				continue
			}
			var cmd schema.RemoteCommand
			if err := json.Unmarshal(payload, &cmd); err != nil {
				m.log.Warn().Err(err).Msg("malformed remote command")
				continue
			}
			m.NoteActivity(now)
			m.Dispatch(now, cmd)
		default:
			return
		}
	}
}

// Dispatch routes one command. Unknown commands are ignored.
func (m *Manager) Dispatch(now time.Time, cmd schema.RemoteCommand) {
	switch cmd.Cmd {
	case schema.CmdUnlock:
		m.unlocker.Unlock(RemoteSource)
	case schema.CmdStartCall:
		m.waker.Wake(now, schema.VisionCommand{Cmd: schema.VisionCmdStartCall, RoomID: cmd.RoomID})
	case schema.CmdEndCall:
		m.Deactivate()
	default:
		m.log.Debug().Str("cmd", cmd.Cmd).Msg("unknown remote command ignored")
	}
}

// Log publishes a telemetry event while the session is active.
func (m *Manager) Log(event string, data map[string]any) {
	if !m.active {
		return
	}
	rec := schema.Event{
		ID:        uuid.NewString(),
		Event:     event,
		LockID:    m.cfg.LockID,
		Timestamp: m.nowFn().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		m.log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	if !m.transport.Connected() {
		m.log.Debug().Err(ErrNotConnected).Str("event", event).Msg("event not published")
		return
	}
	if err := m.transport.Publish(m.cfg.LogTopic, payload); err != nil {
		m.log.Warn().Err(err).Str("event", event).Msg("publish event failed")
	}
}
