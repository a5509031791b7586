package lock

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/clock"
	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/internal/notify"
)

// Door pulses the latch open. Relocking happens in Tick so an unlock
// never blocks the loop; unlocking while open extends the pulse.
type Door struct {
	actuator device.Actuator
	notifier notify.Sender
	clock    clock.Clock
	pulse    time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	open     bool
	relockAt time.Time
}

func NewDoor(actuator device.Actuator, notifier notify.Sender, clk clock.Clock, pulse time.Duration, log zerolog.Logger) *Door {
	return &Door{actuator: actuator, notifier: notifier, clock: clk, pulse: pulse, log: log}
}

// Unlock opens the latch on behalf of source.
func (d *Door) Unlock(source string) {
	d.notifier.Notify("Lock Status", "Unlocked by "+source)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.actuator.SetOpen(true); err != nil {
		d.log.Error().Err(err).Msg("latch open failed")
		return
	}
	d.open = true
	d.relockAt = d.clock.Now().Add(d.pulse)
	d.log.Info().Str("source", source).Msg("door unlocked")
}

// Tick relocks once the pulse has elapsed.
func (d *Door) Tick(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open || now.Before(d.relockAt) {
		return
	}
	if err := d.actuator.SetOpen(false); err != nil {
		d.log.Error().Err(err).Msg("latch close failed")
		return
	}
	d.open = false
	d.log.Debug().Msg("door relocked")
}

// Open reports whether the latch is currently released.
func (d *Door) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}
