package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesFirmware(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Minute, cfg.Timing.AuthLockout)
	assert.Equal(t, 10*time.Minute, cfg.Timing.CommissionWindow)
	assert.Equal(t, 2*time.Minute, cfg.Timing.RemoteIdle)
	assert.Equal(t, 3*time.Second, cfg.Timing.VisionMaxUptime)
	assert.Equal(t, "A1B2C3", cfg.Device.PairingCode)
	assert.Equal(t, "lock/commands/%s", cfg.Remote.CommandTopic)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lock.yaml")
	yml := `
device:
  id: "deadbeef-0000"
  pairing_code: "ZZ9"
timing:
  remote_idle: 90s
remote:
  transport: nats
  broker: nats://127.0.0.1:4222
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv(EnvPrefix+"PAIRING_CODE", "FROMENV")
	t.Setenv(EnvPrefix+"VISION_MAX_UPTIME", "5s")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "deadbeef-0000", cfg.Device.ID)
	assert.Equal(t, "FROMENV", cfg.Device.PairingCode)
	assert.Equal(t, 90*time.Second, cfg.Timing.RemoteIdle)
	assert.Equal(t, 5*time.Second, cfg.Timing.VisionMaxUptime)
	assert.Equal(t, "nats", cfg.Remote.Transport)
	// untouched defaults survive a partial file
	assert.Equal(t, 20*time.Second, cfg.Timing.JoinTimeout)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvPrefix+"PUSH_KEY=secret-key\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(EnvPrefix + "PUSH_KEY") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Push.Key)
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.Timing.JoinTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidDuration)

	cfg = Default()
	cfg.Remote.Transport = "carrier-pigeon"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownTransport)

	cfg = Default()
	cfg.Device.PairingCode = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingPairing)
}

func TestBadEnvDuration(t *testing.T) {
	t.Setenv(EnvPrefix+"REMOTE_IDLE", "soon")
	_, err := Load("", "")
	assert.Error(t, err)
}

func TestValidateTopicPatterns(t *testing.T) {
	for _, pattern := range []string{"lock/commands", "lock/%s/%s", "lock/%d", "lock/%s/100%"} {
		cfg := Default()
		cfg.Remote.CommandTopic = pattern
		assert.ErrorIs(t, cfg.Validate(), ErrTopicPattern, pattern)
	}

	cfg := Default()
	cfg.Remote.LogTopic = "logs"
	assert.ErrorIs(t, cfg.Validate(), ErrTopicPattern)
}

func TestVisionBaud(t *testing.T) {
	assert.Equal(t, 115200, Default().Vision.Baud)

	t.Setenv(EnvPrefix+"VISION_BAUD", "921600")
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 921600, cfg.Vision.Baud)

	cfg.Vision.Baud = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidBaud)

	t.Setenv(EnvPrefix+"VISION_BAUD", "fast")
	_, err = Load("", "")
	assert.Error(t, err)
}
