// Package config holds the lock daemon configuration. Values come from
// built-in defaults, an optional YAML file, an optional .env file and
// CELERIX_LOCK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/celerix-dev/celerix-lock/internal/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CELERIX_LOCK_"

var (
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrMissingDeviceID  = errors.New("device id is required")
	ErrMissingPairing   = errors.New("pairing code is required")
	ErrUnknownTransport = errors.New("unknown remote transport")
	ErrTopicPattern     = errors.New("topic pattern must contain exactly one %s")
	ErrInvalidBaud      = errors.New("baud rate must be positive")
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Timing  TimingConfig  `yaml:"timing"`
	Store   StoreConfig   `yaml:"store"`
	HTTP    HTTPConfig    `yaml:"http"`
	Pairing PairingConfig `yaml:"pairing"`
	Remote  RemoteConfig  `yaml:"remote"`
	Cloud   CloudConfig   `yaml:"cloud"`
	Push    PushConfig    `yaml:"push"`
	Vision  VisionConfig  `yaml:"vision"`
	Log     logger.Config `yaml:"log"`
	Debug   bool          `yaml:"debug"`
}

// DeviceConfig carries the build-time identity of the unit.
type DeviceConfig struct {
	ID             string `yaml:"id"`
	Model          string `yaml:"model"`
	Firmware       string `yaml:"firmware"`
	AdvertiseName  string `yaml:"advertise_name"`
	PairingCode    string `yaml:"pairing_code"`
	HostnamePrefix string `yaml:"hostname_prefix"`
}

type TimingConfig struct {
	AuthLockout       time.Duration `yaml:"auth_lockout"`
	CommissionWindow  time.Duration `yaml:"commission_window"`
	CommissionPoll    time.Duration `yaml:"commission_poll"`
	JoinTimeout       time.Duration `yaml:"join_timeout"`
	JoinPoll          time.Duration `yaml:"join_poll"`
	JoinFailRetry     time.Duration `yaml:"join_fail_retry"`
	IPAckWait         time.Duration `yaml:"ip_ack_wait"`
	RemoteIdle        time.Duration `yaml:"remote_idle"`
	VisionMaxUptime   time.Duration `yaml:"vision_max_uptime"`
	BatteryInterval   time.Duration `yaml:"battery_interval"`
	UnlockPulse       time.Duration `yaml:"unlock_pulse"`
	MotionDebounce    time.Duration `yaml:"motion_debounce"`
	LoopInterval      time.Duration `yaml:"loop_interval"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout"`
	RegisterTimeout   time.Duration `yaml:"register_timeout"`
	RemoteDialTimeout time.Duration `yaml:"remote_dial_timeout"`
}

type StoreConfig struct {
	DataDir     string `yaml:"data_dir"`
	Namespace   string `yaml:"namespace"`
	VaultSecret string `yaml:"vault_secret"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type PairingConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// RemoteConfig selects the publish/subscribe transport. Topic patterns
// take the user id through a single %s verb.
type RemoteConfig struct {
	Transport    string `yaml:"transport"`
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CommandTopic string `yaml:"command_topic"`
	LogTopic     string `yaml:"log_topic"`
}

type CloudConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type PushConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Key          string `yaml:"key"`
	NotifyMotion bool   `yaml:"notify_motion"`
}

type VisionConfig struct {
	// Port is a serial device path or a tcp://host:port bridge.
	Port string `yaml:"port"`
	// Baud applies to serial devices only.
	Baud int `yaml:"baud"`
}

// Default returns the configuration matching the shipped firmware.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			ID:             "c0ffee00-1234-4abc-9def-9876543210aa",
			Model:          "JUPY Block Pro",
			Firmware:       "v1.0",
			AdvertiseName:  "JUPY Lock Pro",
			PairingCode:    "A1B2C3",
			HostnamePrefix: "JUPY_",
		},
		Timing: TimingConfig{
			AuthLockout:       30 * time.Minute,
			CommissionWindow:  10 * time.Minute,
			CommissionPoll:    100 * time.Millisecond,
			JoinTimeout:       20 * time.Second,
			JoinPoll:          500 * time.Millisecond,
			JoinFailRetry:     200 * time.Millisecond,
			IPAckWait:         5 * time.Second,
			RemoteIdle:        2 * time.Minute,
			VisionMaxUptime:   3 * time.Second,
			BatteryInterval:   15 * time.Minute,
			UnlockPulse:       3 * time.Second,
			MotionDebounce:    50 * time.Millisecond,
			LoopInterval:      20 * time.Millisecond,
			NotifyTimeout:     10 * time.Second,
			RegisterTimeout:   15 * time.Second,
			RemoteDialTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			DataDir:   "./data",
			Namespace: "my_storage",
		},
		HTTP:    HTTPConfig{Listen: ":80"},
		Pairing: PairingConfig{Listen: ":8765", Path: "/pairing"},
		Remote: RemoteConfig{
			Transport:    "mqtt",
			Broker:       "tcp://broker.hivemq.com:1883",
			ClientID:     "JUPY_SmartLock",
			CommandTopic: "lock/commands/%s",
			LogTopic:     "lock/logs/%s",
		},
		Cloud:  CloudConfig{Endpoint: "http://192.168.50.163:3000/api/lock"},
		Push:   PushConfig{Endpoint: "https://fcm.googleapis.com/fcm/send"},
		Vision: VisionConfig{Baud: 115200},
		Log:    logger.Config{Level: "info"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. envFile names an optional dotenv
// file; a missing file is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks invariants the core relies on.
func (c Config) Validate() error {
	if c.Device.ID == "" {
		return ErrMissingDeviceID
	}
	if c.Device.PairingCode == "" {
		return ErrMissingPairing
	}

	durations := map[string]time.Duration{
		"auth_lockout":      c.Timing.AuthLockout,
		"commission_window": c.Timing.CommissionWindow,
		"commission_poll":   c.Timing.CommissionPoll,
		"join_timeout":      c.Timing.JoinTimeout,
		"join_poll":         c.Timing.JoinPoll,
		"remote_idle":       c.Timing.RemoteIdle,
		"vision_max_uptime": c.Timing.VisionMaxUptime,
		"battery_interval":  c.Timing.BatteryInterval,
		"unlock_pulse":      c.Timing.UnlockPulse,
		"loop_interval":     c.Timing.LoopInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("timing.%s: %w", name, ErrInvalidDuration)
		}
	}

	switch c.Remote.Transport {
	case "mqtt", "nats":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Remote.Transport)
	}

	topics := map[string]string{
		"command_topic": c.Remote.CommandTopic,
		"log_topic":     c.Remote.LogTopic,
	}
	for name, pattern := range topics {
		if strings.Count(pattern, "%s") != 1 || strings.Count(pattern, "%") != 1 {
			return fmt.Errorf("remote.%s %q: %w", name, pattern, ErrTopicPattern)
		}
	}

	if c.Vision.Baud <= 0 {
		return fmt.Errorf("vision.baud %d: %w", c.Vision.Baud, ErrInvalidBaud)
	}

	return nil
}
