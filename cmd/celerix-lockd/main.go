package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/celerix-dev/celerix-lock/internal/access"
	"github.com/celerix-dev/celerix-lock/internal/api"
	"github.com/celerix-dev/celerix-lock/internal/battery"
	"github.com/celerix-dev/celerix-lock/internal/bootstrap"
	"github.com/celerix-dev/celerix-lock/internal/clock"
	"github.com/celerix-dev/celerix-lock/internal/commissioning"
	"github.com/celerix-dev/celerix-lock/internal/config"
	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/internal/engine"
	"github.com/celerix-dev/celerix-lock/internal/lock"
	"github.com/celerix-dev/celerix-lock/internal/logger"
	"github.com/celerix-dev/celerix-lock/internal/notify"
	"github.com/celerix-dev/celerix-lock/internal/perception"
	"github.com/celerix-dev/celerix-lock/internal/remote"
	"github.com/celerix-dev/celerix-lock/internal/settings"
	"github.com/celerix-dev/celerix-lock/internal/state"
	"github.com/celerix-dev/celerix-lock/internal/transport/mqtt"
	natstransport "github.com/celerix-dev/celerix-lock/internal/transport/nats"
	"github.com/celerix-dev/celerix-lock/internal/transport/ws"
	"github.com/celerix-dev/celerix-lock/internal/uart"
	"github.com/celerix-dev/celerix-lock/internal/vault"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	envFile := pflag.String("env-file", ".env", "optional dotenv file")
	dataDir := pflag.String("data-dir", "", "override the store directory")
	debug := pflag.Bool("debug", false, "mount the /debug routes and log at debug level")
	pflag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *debug {
		cfg.Debug = true
		cfg.Log.Debug = true
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("lockd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("lock stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log := logger.WithComponent("lockd")
	id := device.Identity{ID: cfg.Device.ID, Model: cfg.Device.Model, Firmware: cfg.Device.Firmware}
	log.Info().Str("lock_id", id.ID).Str("firmware", id.Firmware).Msg("starting lock")

	ms, err := engine.Open(cfg.Store.DataDir, logger.WithComponent("engine"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		log.Info().Msg("finalizing disk writes")
		ms.Wait()
	}()

	var sealer state.Sealer
	if cfg.Store.VaultSecret != "" {
		key, err := vault.DeriveKey([]byte(cfg.Store.VaultSecret), []byte(id.ID))
		if err != nil {
			return err
		}
		box, err := vault.NewBox(key)
		if err != nil {
			return err
		}
		sealer = box
	}
	st := state.New(ms.Namespace(cfg.Store.Namespace), sealer, logger.WithComponent("state"))
	if err := st.SeedPairingCode(cfg.Device.PairingCode); err != nil {
		return fmt.Errorf("seed pairing code: %w", err)
	}

	hw := device.NewSim(logger.WithComponent("hardware"))
	station := device.NewHostStation(logger.WithComponent("wifi"))
	clk := clock.Real()

	notifier := newNotifier(cfg, st)
	if f, ok := notifier.(*notify.FCM); ok {
		defer f.Wait()
	}

	out := pair(ctx, cfg, id, st, station, hw, clk)
	if out.Err != nil {
		if errors.Is(out.Err, context.Canceled) {
			return nil
		}
		return out.Err
	}
	log.Info().Str("ip", out.IP).Str("hostname", out.Hostname).Msg("network ready")

	rec := st.Commissioning()
	link := visionLink(cfg, log)

	door := lock.NewDoor(hw, notifier, clk, cfg.Timing.UnlockPulse, logger.WithComponent("door"))
	guard := access.NewGuard(st, logger.WithComponent("access"))
	lockout := access.NewLockout(cfg.Timing.AuthLockout, logger.WithComponent("access"))

	var mgr *remote.Manager
	perc := perception.New(perception.Config{
		MaxUptime:    cfg.Timing.VisionMaxUptime,
		NotifyMotion: cfg.Push.NotifyMotion,
	}, hw, link, door, perception.EventFunc(func(e string, d map[string]any) { mgr.Log(e, d) }),
		notifier, logger.WithComponent("perception"))

	mgr = remote.New(remote.Config{
		LockID:        id.ID,
		CommandTopic:  fmt.Sprintf(cfg.Remote.CommandTopic, rec.UserID),
		LogTopic:      fmt.Sprintf(cfg.Remote.LogTopic, rec.UserID),
		Idle:          cfg.Timing.RemoteIdle,
		DialTimeout:   cfg.Timing.RemoteDialTimeout,
		RetryInterval: cfg.Timing.RemoteDialTimeout,
	}, newTransport(cfg), door, perc, logger.WithComponent("remote"))

	sh := settings.New(settings.Deps{
		Guard: guard, Lockout: lockout, Store: st, Waker: perc, Notifier: notifier, Events: mgr,
	}, logger.WithComponent("settings"), settings.DefaultOptions()...)

	l := lock.New(lock.Config{
		LoopInterval:   cfg.Timing.LoopInterval,
		MotionDebounce: cfg.Timing.MotionDebounce,
	}, lock.Deps{
		Clock: clk, Sensors: hw, Door: door, Guard: guard, Lockout: lockout, Perception: perc,
		Remote: mgr, Settings: sh, Profile: st, Notifier: notifier,
		Battery: battery.New(hw, battery.Linear, notifier, cfg.Timing.BatteryInterval, clk.Now(),
			logger.WithComponent("battery")),
	}, logger.WithComponent("lock"))

	if link, ok := link.(*uart.Link); ok {
		defer link.Close()
		go func() {
			if err := link.Run(ctx, l.Vision()); err != nil {
				log.Error().Err(err).Msg("co-processor link closed")
			}
		}()
	}

	srv := &http.Server{Addr: cfg.HTTP.Listen, Handler: router(cfg, l, hw)}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Listen).Msg("local API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("local API failed")
		}
	}()

	err = l.Run(ctx)
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("local API shutdown")
	}
	mgr.Deactivate()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pair serves the pairing channel for as long as bootstrap needs it.
func pair(ctx context.Context, cfg config.Config, id device.Identity, st *state.Store,
	station device.Station, power device.PowerManager, clk clock.Clock) bootstrap.Outcome {
	log := logger.WithComponent("pairing")

	bridge := ws.New(nil, logger.WithComponent("pairing"))
	session := commissioning.New(st, device.NewNMCLIScanner(), bridge, logger.WithComponent("commissioning"))
	bridge.Handler = func(payload []byte) {
		if _, err := session.Submit(payload); err != nil {
			log.Warn().Err(err).Msg("pairing request rejected")
		}
	}
	bridge.OnPeer = session.PeerConnected

	mux := http.NewServeMux()
	mux.Handle(cfg.Pairing.Path, bridge)
	srv := &http.Server{Addr: cfg.Pairing.Listen, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.Pairing.Listen).Str("name", cfg.Device.AdvertiseName).Msg("pairing channel advertising")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("pairing channel failed")
		}
	}()
	defer srv.Close()

	b := bootstrap.New(bootstrap.Config{
		CommissionWindow: cfg.Timing.CommissionWindow,
		CommissionPoll:   cfg.Timing.CommissionPoll,
		JoinTimeout:      cfg.Timing.JoinTimeout,
		JoinPoll:         cfg.Timing.JoinPoll,
		JoinFailRetry:    cfg.Timing.JoinFailRetry,
		IPAckWait:        cfg.Timing.IPAckWait,
		RegisterTimeout:  cfg.Timing.RegisterTimeout,
		HostnamePrefix:   cfg.Device.HostnamePrefix,
	}, id, bootstrap.Deps{
		Store:     st,
		Pairing:   session,
		Channel:   bridge,
		Station:   station,
		Power:     power,
		Registrar: bootstrap.NewHTTPRegistrar(cfg.Cloud.Endpoint),
		Clock:     clk,
	}, logger.WithComponent("bootstrap"))
	return b.Run(ctx)
}

func newNotifier(cfg config.Config, st *state.Store) notify.Sender {
	if cfg.Push.Key == "" {
		return notify.Nop{}
	}
	return notify.NewFCM(cfg.Push.Endpoint, cfg.Push.Key, cfg.Timing.NotifyTimeout, st.UserID,
		logger.WithComponent("notify"))
}

func newTransport(cfg config.Config) remote.Transport {
	if cfg.Remote.Transport == "nats" {
		return natstransport.New(natstransport.Config{
			URL:      cfg.Remote.Broker,
			Name:     cfg.Remote.ClientID,
			Username: cfg.Remote.Username,
			Password: cfg.Remote.Password,
		}, logger.WithComponent("nats"))
	}
	return mqtt.New(mqtt.Config{
		Broker:         cfg.Remote.Broker,
		ClientID:       cfg.Remote.ClientID,
		Username:       cfg.Remote.Username,
		Password:       cfg.Remote.Password,
		UniqueClientID: cfg.Debug,
	}, logger.WithComponent("mqtt"))
}

func visionLink(cfg config.Config, log zerolog.Logger) perception.CommandSink {
	if cfg.Vision.Port == "" {
		return uart.Discard{Log: logger.WithComponent("uart")}
	}
	link, err := uart.Open(cfg.Vision.Port, cfg.Vision.Baud, logger.WithComponent("uart"))
	if err != nil {
		log.Warn().Err(err).Str("port", cfg.Vision.Port).Msg("co-processor unavailable, commands discarded")
		return uart.Discard{Log: logger.WithComponent("uart")}
	}
	return link
}

func router(cfg config.Config, l *lock.Lock, hw *device.Sim) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.CORS(), api.RequestLogger(logger.WithComponent("api")))

	(&api.Handler{Lock: l}).Routes(r)
	if cfg.Debug {
		(&api.Debug{Inputs: hw, Vision: l}).Routes(r)
	}
	return r
}
