// Package device describes the hardware the lock core drives. The core
// sees only these interfaces; Sim and the host adapters implement them.
package device

import (
	"context"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Identity is fixed at build time.
type Identity struct {
	ID       string
	Model    string
	Firmware string
}

// Hostname derives the short local hostname: prefix, lock name and the
// upper-cased first four characters of the device id.
func (i Identity) Hostname(prefix, lockName string) string {
	short := i.ID
	if len(short) > 4 {
		short = short[:4]
	}
	name := strings.ReplaceAll(strings.TrimSpace(lockName), " ", "-")
	return prefix + name + strings.ToUpper(short)
}

// Actuator drives the door latch.
type Actuator interface {
	SetOpen(open bool) error
}

// PowerRail switches the vision co-processor supply.
type PowerRail interface {
	SetPower(on bool) error
}

// Key is a keypad press.
type Key struct {
	Kind  KeyKind
	Digit rune
}

type KeyKind int

const (
	KeyDigit KeyKind = iota
	KeyClear
	KeyBell
)

// Sensors are the digital inputs polled by the control loop.
type Sensors interface {
	Motion() bool
	Button() bool
	// NextKey returns a pending keypad press, if any.
	NextKey() (Key, bool)
}

// BatterySampler reads the pack voltage.
type BatterySampler interface {
	SampleVolts() (float64, error)
}

// Station is the network stack in station mode.
type Station interface {
	Begin(ssid, psk string) error
	Connected() bool
	LocalIP() string
	SetHostname(name string) error
	// EnablePowerSave turns on modem sleep and listens every
	// listenInterval beacons.
	EnablePowerSave(listenInterval int) error
}

// Scanner lists visible networks. Scans take seconds.
type Scanner interface {
	Scan(ctx context.Context) ([]schema.Network, error)
}

// WakeReason says what brought the device out of deep sleep.
type WakeReason string

const (
	WakeColdBoot WakeReason = "cold_boot"
	WakeSensor   WakeReason = "sensor"
	WakeTouch    WakeReason = "touch"
	WakeTimer    WakeReason = "timer"
)

// PowerManager owns the low-power halt state. DeepSleep shuts the
// radios down and sleeps until a sensor, touch, or (when wake > 0) a
// timer wakes the device.
type PowerManager interface {
	WakeReason() WakeReason
	DeepSleep(wake time.Duration)
}
