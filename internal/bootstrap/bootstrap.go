// Package bootstrap takes a commissioned lock onto the network once per
// boot.
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/clock"
	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

var (
	ErrCommissionTimeout  = errors.New("no commissioning payload received")
	ErrNetworkJoinFailed  = errors.New("network join failed")
	ErrRegistrationFailed = errors.New("lock registration failed")
)

// listenInterval is the beacon listen interval used with modem sleep.
const listenInterval = 10

// Store is the persisted commissioning record.
type Store interface {
	HasCredentials() bool
	Commissioning() schema.CommissioningRecord
	Clear() error
}

// Pairing is the commissioning side of the pairing channel.
type Pairing interface {
	PayloadReceived() bool
	IPAcknowledged() bool
}

// Channel is the pairing transport.
type Channel interface {
	Notify(v any) error
	Close()
}

// Registrar registers the lock with the backend.
type Registrar interface {
	Register(ctx context.Context, token string, reg schema.Registration) error
}

type Config struct {
	CommissionWindow time.Duration
	CommissionPoll   time.Duration
	JoinTimeout      time.Duration
	JoinPoll         time.Duration
	// JoinFailRetry is the deep sleep timer after a failed join.
	JoinFailRetry   time.Duration
	IPAckWait       time.Duration
	RegisterTimeout time.Duration
	HostnamePrefix  string
}

// Outcome is the result of one boot. Err is nil only when the lock is
// online; any other value means the device has been put to sleep.
type Outcome struct {
	IP       string
	Hostname string
	Err      error
}

type Bootstrapper struct {
	cfg       Config
	id        device.Identity
	store     Store
	pairing   Pairing
	channel   Channel
	station   device.Station
	power     device.PowerManager
	registrar Registrar
	clock     clock.Clock
	log       zerolog.Logger
}

type Deps struct {
	Store     Store
	Pairing   Pairing
	Channel   Channel
	Station   device.Station
	Power     device.PowerManager
	Registrar Registrar
	Clock     clock.Clock
}

func New(cfg Config, id device.Identity, deps Deps, log zerolog.Logger) *Bootstrapper {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Bootstrapper{
		cfg:       cfg,
		id:        id,
		store:     deps.Store,
		pairing:   deps.Pairing,
		channel:   deps.Channel,
		station:   deps.Station,
		power:     deps.Power,
		registrar: deps.Registrar,
		clock:     deps.Clock,
		log:       log,
	}
}

// Run waits for credentials, joins, registers and announces the lock.
// Failures put the device into deep sleep.
func (b *Bootstrapper) Run(ctx context.Context) Outcome {
	if !b.store.HasCredentials() {
		b.log.Info().Dur("window", b.cfg.CommissionWindow).Msg("waiting for commissioning")
		ok, err := b.poll(ctx, b.cfg.CommissionWindow, b.cfg.CommissionPoll, b.pairing.PayloadReceived)
		if err != nil {
			return Outcome{Err: err}
		}
		if !ok {
			b.log.Warn().Msg("commissioning window elapsed, sleeping")
			b.power.DeepSleep(0)
			return Outcome{Err: ErrCommissionTimeout}
		}
	}

	rec := b.store.Commissioning()
	if err := b.station.Begin(rec.WifiSSID, rec.WifiPwd); err != nil {
		b.log.Error().Err(err).Msg("station start failed")
	}
	joined, err := b.poll(ctx, b.cfg.JoinTimeout, b.cfg.JoinPoll, b.station.Connected)
	if err != nil {
		return Outcome{Err: err}
	}
	if !joined {
		b.log.Error().Str("ssid", rec.WifiSSID).Msg("network connection failed, discarding credentials")
		b.discard()
		b.notify(schema.PairingStatus{Status: schema.StatusWifiFail})
		b.power.DeepSleep(b.cfg.JoinFailRetry)
		return Outcome{Err: ErrNetworkJoinFailed}
	}
	ip := b.station.LocalIP()
	b.log.Info().Str("ip", ip).Msg("network connected")

	regCtx, cancel := context.WithTimeout(ctx, b.cfg.RegisterTimeout)
	err = b.registrar.Register(regCtx, rec.Token, schema.Registration{
		UserID:          rec.UserID,
		LockID:          b.id.ID,
		LockName:        rec.LockName,
		Owner:           rec.Owner,
		Model:           b.id.Model,
		FirmwareVersion: b.id.Firmware,
	})
	cancel()
	if err != nil {
		b.log.Error().Err(err).Msg("registering lock failed")
		b.discard()
		b.notify(schema.PairingError{Error: "Failed to register Lock"})
		b.power.DeepSleep(0)
		return Outcome{Err: errors.Join(ErrRegistrationFailed, err)}
	}

	hostname := b.id.Hostname(b.cfg.HostnamePrefix, rec.LockName)
	if err := b.station.SetHostname(hostname); err != nil {
		b.log.Warn().Err(err).Msg("set hostname failed")
	}
	b.notify(schema.LockInfo{LockID: b.id.ID, LockIP: ip, Hostname: hostname})

	acked, err := b.poll(ctx, b.cfg.IPAckWait, b.cfg.CommissionPoll, b.pairing.IPAcknowledged)
	if err != nil {
		return Outcome{Err: err}
	}
	if !acked {
		b.log.Debug().Msg("no address acknowledgment from peer")
	}
	b.notify(schema.PairingStatus{Status: schema.StatusDisconnected})

	if err := b.station.EnablePowerSave(listenInterval); err != nil {
		b.log.Warn().Err(err).Msg("power save not enabled")
	}
	b.channel.Close()
	b.log.Info().Str("hostname", hostname).Msg("pairing disabled, network active")
	return Outcome{IP: ip, Hostname: hostname}
}

// poll checks cond every interval until it holds or window elapses.
func (b *Bootstrapper) poll(ctx context.Context, window, interval time.Duration, cond func() bool) (bool, error) {
	deadline := b.clock.Now().Add(window)
	for {
		if cond() {
			return true, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !b.clock.Now().Before(deadline) {
			return false, nil
		}
		b.clock.Sleep(interval)
	}
}

func (b *Bootstrapper) discard() {
	if err := b.store.Clear(); err != nil {
		b.log.Error().Err(err).Msg("clearing credentials failed")
	}
}

func (b *Bootstrapper) notify(v any) {
	if err := b.channel.Notify(v); err != nil {
		b.log.Warn().Err(err).Msg("pairing notify failed")
	}
}
