package battery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/internal/logger"
	"github.com/celerix-dev/celerix-lock/internal/notify"
)

func TestLinear(t *testing.T) {
	assert.Equal(t, 100, Linear(12.6))
	assert.Equal(t, 100, Linear(13.0))
	assert.Equal(t, 0, Linear(10.5))
	assert.Equal(t, 0, Linear(9.0))
	assert.Equal(t, 50, Linear(11.55))
}

func TestTickReportsOncePerInterval(t *testing.T) {
	sim := device.NewSim(logger.NewTestLogger())
	notes := &notify.Recorder{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(sim, nil, notes, 15*time.Minute, start, logger.NewTestLogger())

	m.Tick(start.Add(15 * time.Minute))
	assert.Empty(t, notes.Notes())

	m.Tick(start.Add(16 * time.Minute))
	m.Tick(start.Add(17 * time.Minute))
	assert.Equal(t, []notify.Note{{Title: "Lock Battery", Body: "Battery at 100%."}}, notes.Notes())
}

func TestLowBatteryWarnings(t *testing.T) {
	cases := []struct {
		level int
		note  notify.Note
	}{
		{0, notify.Note{Title: "Low Battery", Body: "Battery depleted. Recharge Now!"}},
		{8, notify.Note{Title: "Low Battery", Body: "Battery at 8%. Charge battery."}},
		{20, notify.Note{Title: "Low Battery", Body: "Battery at 20%. Charge battery soon."}},
		{55, notify.Note{Title: "Lock Battery", Body: "Battery at 55%."}},
	}
	for _, tc := range cases {
		notes := &notify.Recorder{}
		level := tc.level
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m := New(device.NewSim(logger.NewTestLogger()), func(float64) int { return level }, notes, time.Minute, start, logger.NewTestLogger())
		m.Tick(start.Add(2 * time.Minute))
		assert.Equal(t, []notify.Note{tc.note}, notes.Notes(), "level %d", tc.level)
		assert.Equal(t, level, m.Last())
	}
}
