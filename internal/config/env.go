package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"DEVICE_ID":            &cfg.Device.ID,
		"DEVICE_MODEL":         &cfg.Device.Model,
		"FIRMWARE_VERSION":     &cfg.Device.Firmware,
		"ADVERTISE_NAME":       &cfg.Device.AdvertiseName,
		"PAIRING_CODE":         &cfg.Device.PairingCode,
		"HOSTNAME_PREFIX":      &cfg.Device.HostnamePrefix,
		"DATA_DIR":             &cfg.Store.DataDir,
		"STORE_NAMESPACE":      &cfg.Store.Namespace,
		"VAULT_SECRET":         &cfg.Store.VaultSecret,
		"HTTP_LISTEN":          &cfg.HTTP.Listen,
		"PAIRING_LISTEN":       &cfg.Pairing.Listen,
		"PAIRING_PATH":         &cfg.Pairing.Path,
		"REMOTE_TRANSPORT":     &cfg.Remote.Transport,
		"REMOTE_BROKER":        &cfg.Remote.Broker,
		"REMOTE_CLIENT_ID":     &cfg.Remote.ClientID,
		"REMOTE_USERNAME":      &cfg.Remote.Username,
		"REMOTE_PASSWORD":      &cfg.Remote.Password,
		"REMOTE_COMMAND_TOPIC": &cfg.Remote.CommandTopic,
		"REMOTE_LOG_TOPIC":     &cfg.Remote.LogTopic,
		"CLOUD_ENDPOINT":       &cfg.Cloud.Endpoint,
		"PUSH_ENDPOINT":        &cfg.Push.Endpoint,
		"PUSH_KEY":             &cfg.Push.Key,
		"VISION_PORT":          &cfg.Vision.Port,
		"LOG_LEVEL":            &cfg.Log.Level,
		"LOG_OUTPUT":           &cfg.Log.Output,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DEBUG":         &cfg.Debug,
		"LOG_DEBUG":     &cfg.Log.Debug,
		"NOTIFY_MOTION": &cfg.Push.NotifyMotion,
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = parseBool(v)
		}
	}

	durations := map[string]*time.Duration{
		"AUTH_LOCKOUT":      &cfg.Timing.AuthLockout,
		"COMMISSION_WINDOW": &cfg.Timing.CommissionWindow,
		"JOIN_TIMEOUT":      &cfg.Timing.JoinTimeout,
		"REMOTE_IDLE":       &cfg.Timing.RemoteIdle,
		"VISION_MAX_UPTIME": &cfg.Timing.VisionMaxUptime,
		"BATTERY_INTERVAL":  &cfg.Timing.BatteryInterval,
		"UNLOCK_PULSE":      &cfg.Timing.UnlockPulse,
		"LOOP_INTERVAL":     &cfg.Timing.LoopInterval,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"VISION_BAUD": &cfg.Vision.Baud,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	return nil
}

func parseBool(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	}
	return false
}
