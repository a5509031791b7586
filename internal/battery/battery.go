// Package battery samples the pack and warns the owner as it drains.
package battery

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/internal/notify"
)

const samples = 10

// Calibration maps pack voltage to a 0-100 charge level.
type Calibration func(volts float64) int

// Linear is the default calibration: 10.5V empty, 12.6V full.
func Linear(volts float64) int {
	const empty, full = 10.5, 12.6
	pct := int((volts - empty) / (full - empty) * 100)
	return clamp(pct)
}

func clamp(pct int) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

type Monitor struct {
	sampler   device.BatterySampler
	calibrate Calibration
	notifier  notify.Sender
	interval  time.Duration
	log       zerolog.Logger
	lastCheck time.Time
	last      int
}

// New returns a monitor whose first report is due one interval after
// start. A nil calibration selects Linear.
func New(sampler device.BatterySampler, calibrate Calibration, notifier notify.Sender, interval time.Duration, start time.Time, log zerolog.Logger) *Monitor {
	if calibrate == nil {
		calibrate = Linear
	}
	return &Monitor{
		sampler:   sampler,
		calibrate: calibrate,
		notifier:  notifier,
		interval:  interval,
		log:       log,
		lastCheck: start,
		last:      -1,
	}
}

// Level samples the pack now.
func (m *Monitor) Level() int {
	var sum float64
	n := 0
	for i := 0; i < samples; i++ {
		v, err := m.sampler.SampleVolts()
		if err != nil {
			m.log.Warn().Err(err).Msg("battery sample failed")
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	m.last = clamp(m.calibrate(sum / float64(n)))
	return m.last
}

// Last is the most recent level, or -1 before the first sample.
func (m *Monitor) Last() int { return m.last }

// Tick reports the level once per interval.
func (m *Monitor) Tick(now time.Time) {
	if now.Sub(m.lastCheck) <= m.interval {
		return
	}
	m.lastCheck = now
	level := m.Level()
	m.log.Info().Int("level", level).Msg("battery checked")

	switch {
	case level <= 0:
		m.notifier.Notify("Low Battery", "Battery depleted. Recharge Now!")
	case level <= 10:
		m.notifier.Notify("Low Battery", fmt.Sprintf("Battery at %d%%. Charge battery.", level))
	case level <= 20:
		m.notifier.Notify("Low Battery", fmt.Sprintf("Battery at %d%%. Charge battery soon.", level))
	default:
		m.notifier.Notify("Lock Battery", fmt.Sprintf("Battery at %d%%.", level))
	}
}
