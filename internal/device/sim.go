package device

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sim is an in-process stand-in for the lock hardware. Inputs are
// injected with the Trigger/Press methods; outputs are recorded and
// logged.
type Sim struct {
	mu       sync.Mutex
	log      zerolog.Logger
	motion   bool
	button   bool
	keys     []Key
	open     bool
	powered  bool
	volts    float64
	opens    int
	powerOns int
	sleeps   []time.Duration
	wake     WakeReason
}

// NewSim returns simulated hardware reporting a full battery.
func NewSim(log zerolog.Logger) *Sim {
	return &Sim{log: log, volts: 12.6, wake: WakeColdBoot}
}

func (s *Sim) SetOpen(open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open && !s.open {
		s.opens++
	}
	s.open = open
	s.log.Info().Bool("open", open).Msg("latch")
	return nil
}

func (s *Sim) SetPower(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && !s.powered {
		s.powerOns++
	}
	s.powered = on
	s.log.Debug().Bool("on", on).Msg("co-processor rail")
	return nil
}

// Motion reports and consumes a pending motion trigger.
func (s *Sim) Motion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.motion
	s.motion = false
	return m
}

// Button reports and consumes a pending button press.
func (s *Sim) Button() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.button
	s.button = false
	return b
}

func (s *Sim) NextKey() (Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) == 0 {
		return Key{}, false
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, true
}

func (s *Sim) SampleVolts() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volts, nil
}

func (s *Sim) WakeReason() WakeReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wake
}

// DeepSleep records the request. The simulated device does not halt.
func (s *Sim) DeepSleep(wake time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, wake)
	s.log.Info().Dur("wake", wake).Msg("entering deep sleep")
}

// TriggerMotion raises the PIR input once.
func (s *Sim) TriggerMotion() {
	s.mu.Lock()
	s.motion = true
	s.mu.Unlock()
}

// PressButton raises the inside release button once.
func (s *Sim) PressButton() {
	s.mu.Lock()
	s.button = true
	s.mu.Unlock()
}

// PressKeys queues keypad input: digits, 'x' for clear, 'b' or '#'
// for the bell key.
func (s *Sim) PressKeys(keys string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range keys {
		switch {
		case r >= '0' && r <= '9':
			s.keys = append(s.keys, Key{Kind: KeyDigit, Digit: r})
		case r == 'x' || r == 'X':
			s.keys = append(s.keys, Key{Kind: KeyClear})
		case r == 'b' || r == 'B' || r == '#':
			s.keys = append(s.keys, Key{Kind: KeyBell})
		}
	}
}

// SetVolts changes the simulated battery voltage.
func (s *Sim) SetVolts(v float64) {
	s.mu.Lock()
	s.volts = v
	s.mu.Unlock()
}

// SetWakeReason changes what WakeReason reports.
func (s *Sim) SetWakeReason(r WakeReason) {
	s.mu.Lock()
	s.wake = r
	s.mu.Unlock()
}

// IsOpen reports the latch state.
func (s *Sim) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Powered reports the co-processor rail state.
func (s *Sim) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered
}

// Opens counts latch releases.
func (s *Sim) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// PowerOns counts co-processor power-ups.
func (s *Sim) PowerOns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powerOns
}

// Sleeps returns every DeepSleep request.
func (s *Sim) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}
