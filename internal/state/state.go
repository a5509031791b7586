// Package state is the lock's persisted configuration: the commissioning
// record mirrored into preferences plus one integer per setting.
package state

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/engine"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Persisted keys.
const (
	KeyPairingCode = "pairing_code"
	KeyUserID      = "user_id"
	KeyWifiSSID    = "wifi_ssid"
	KeyWifiPwd     = "wifi_pwd"
	KeyLockName    = "lock_name"
	KeyOwner       = "owner"
	KeyToken       = "token"
	KeyPin         = "pin"
)

// secretKeys are sealed before they reach the preferences.
var secretKeys = map[string]bool{
	KeyWifiPwd: true,
	KeyToken:   true,
	KeyPin:     true,
}

// Sealer encrypts secret values at rest. *vault.Box satisfies it.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Store is the typed view of the persisted configuration.
type Store struct {
	prefs  engine.Preferences
	sealer Sealer
	log    zerolog.Logger
}

// New wraps prefs. sealer may be nil, in which case secrets are stored
// as given.
func New(prefs engine.Preferences, sealer Sealer, log zerolog.Logger) *Store {
	return &Store{prefs: prefs, sealer: sealer, log: log}
}

func (s *Store) get(key string) string {
	raw := s.prefs.GetString(key)
	if raw == "" || s.sealer == nil || !secretKeys[key] {
		return raw
	}
	plain, err := s.sealer.Open(raw)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("could not open sealed preference")
		return ""
	}
	return plain
}

func (s *Store) put(key, val string) error {
	if s.sealer != nil && secretKeys[key] && val != "" {
		sealed, err := s.sealer.Seal(val)
		if err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
		val = sealed
	}
	return s.prefs.PutString(key, val)
}

// SeedPairingCode writes the out-of-band pairing code. The firmware does
// this at every boot so a cleared store still accepts commissioning.
func (s *Store) SeedPairingCode(code string) error {
	return s.prefs.PutString(KeyPairingCode, code)
}

func (s *Store) PairingCode() string { return s.prefs.GetString(KeyPairingCode) }

// SaveCommissioning persists every field of rec except the pairing code.
// Callers validate rec first; there is no rollback of a partial write.
func (s *Store) SaveCommissioning(rec schema.CommissioningRecord) error {
	fields := []struct{ key, val string }{
		{KeyUserID, rec.UserID},
		{KeyWifiSSID, rec.WifiSSID},
		{KeyWifiPwd, rec.WifiPwd},
		{KeyLockName, rec.LockName},
		{KeyOwner, rec.Owner},
		{KeyToken, rec.Token},
		{KeyPin, rec.Pin},
	}
	var errs []error
	for _, f := range fields {
		if err := s.put(f.key, f.val); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", f.key, err))
		}
	}
	return errors.Join(errs...)
}

// Commissioning reads the staged record back. PairingCode is left empty.
func (s *Store) Commissioning() schema.CommissioningRecord {
	return schema.CommissioningRecord{
		UserID:   s.get(KeyUserID),
		WifiSSID: s.get(KeyWifiSSID),
		WifiPwd:  s.get(KeyWifiPwd),
		LockName: s.get(KeyLockName),
		Owner:    s.get(KeyOwner),
		Pin:      s.get(KeyPin),
		Token:    s.get(KeyToken),
	}
}

// HasCredentials reports whether a network has been provisioned.
func (s *Store) HasCredentials() bool { return s.get(KeyWifiSSID) != "" }

func (s *Store) Pin() string      { return s.get(KeyPin) }
func (s *Store) Owner() string    { return s.get(KeyOwner) }
func (s *Store) LockName() string { return s.get(KeyLockName) }
func (s *Store) UserID() string   { return s.get(KeyUserID) }
func (s *Store) WifiSSID() string { return s.get(KeyWifiSSID) }
func (s *Store) Token() string    { return s.get(KeyToken) }

// Value reads any string key, opening sealed values.
func (s *Store) Value(key string) string { return s.get(key) }

// SetValue writes any string key, sealing secret ones.
func (s *Store) SetValue(key, val string) error { return s.put(key, val) }

// Setting returns the stored integer for a setting name.
func (s *Store) Setting(name string) (int, bool) { return s.prefs.GetInt(name) }

// SetSetting persists one setting value.
func (s *Store) SetSetting(name string, val int) error { return s.prefs.PutInt(name, val) }

// Clear wipes everything, including the pairing code.
func (s *Store) Clear() error { return s.prefs.Clear() }
