package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-lock/internal/engine"
	"github.com/celerix-dev/celerix-lock/internal/logger"
	"github.com/celerix-dev/celerix-lock/internal/vault"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

func sampleRecord() schema.CommissioningRecord {
	return schema.CommissioningRecord{
		UserID: "u1", WifiSSID: "Home", WifiPwd: "pw", LockName: "Front",
		Owner: "Alice", Pin: "1234", PairingCode: "A1B2C3", Token: "t",
	}
}

func TestSaveCommissioningSkipsPairingCode(t *testing.T) {
	ms := engine.NewMemStore(nil, nil)
	prefs := ms.Namespace("my_storage")
	s := New(prefs, nil, logger.NewTestLogger())

	require.NoError(t, s.SeedPairingCode("SEEDED"))
	require.NoError(t, s.SaveCommissioning(sampleRecord()))

	assert.Equal(t, "SEEDED", s.PairingCode())
	got := s.Commissioning()
	want := sampleRecord()
	want.PairingCode = ""
	assert.Equal(t, want, got)
	assert.True(t, s.HasCredentials())
}

func TestSecretsAreSealedAtRest(t *testing.T) {
	key, err := vault.DeriveKey([]byte("secret"), []byte("device"))
	require.NoError(t, err)
	box, err := vault.NewBox(key)
	require.NoError(t, err)

	ms := engine.NewMemStore(nil, nil)
	prefs := ms.Namespace("my_storage")
	s := New(prefs, box, logger.NewTestLogger())
	require.NoError(t, s.SaveCommissioning(sampleRecord()))

	assert.NotEqual(t, "pw", prefs.GetString(KeyWifiPwd))
	assert.NotEqual(t, "1234", prefs.GetString(KeyPin))
	assert.Equal(t, "Home", prefs.GetString(KeyWifiSSID))

	assert.Equal(t, "pw", s.Commissioning().WifiPwd)
	assert.Equal(t, "1234", s.Pin())
	assert.Equal(t, "t", s.Token())
}

func TestClearAndSettings(t *testing.T) {
	ms := engine.NewMemStore(nil, nil)
	s := New(ms.Namespace("my_storage"), nil, logger.NewTestLogger())

	require.NoError(t, s.SetSetting("call_timeout", 40))
	v, ok := s.Setting("call_timeout")
	assert.True(t, ok)
	assert.Equal(t, 40, v)

	require.NoError(t, s.SaveCommissioning(sampleRecord()))
	require.NoError(t, s.Clear())
	assert.False(t, s.HasCredentials())
	assert.Empty(t, s.Pin())
	_, ok = s.Setting("call_timeout")
	assert.False(t, ok)
}
