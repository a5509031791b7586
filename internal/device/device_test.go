package device

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-lock/internal/logger"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

func TestIdentityHostname(t *testing.T) {
	id := Identity{ID: "c0ffee00-1234-4abc-9def-9876543210aa"}
	assert.Equal(t, "JUPY_FrontC0FF", id.Hostname("JUPY_", "Front"))
	assert.Equal(t, "JUPY_Back-DoorC0FF", id.Hostname("JUPY_", "Back Door"))
	assert.Equal(t, "X-AB", Identity{ID: "ab"}.Hostname("X-", ""))
}

func TestParseNMCLI(t *testing.T) {
	out := []byte("Home:80:WPA2\nCafe\\:Free:40:--\n:90:WPA2\nbroken\nGuest:notanumber:WPA2\n")
	nets := ParseNMCLI(out)
	require.Len(t, nets, 2)
	assert.Equal(t, schema.Network{SSID: "Home", RSSI: -60, Secured: true}, nets[0])
	assert.Equal(t, schema.Network{SSID: "Cafe:Free", RSSI: -80, Secured: false}, nets[1])
}

func TestNMCLIScannerError(t *testing.T) {
	s := &NMCLIScanner{Run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("not installed")
	}}
	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestHostStationLocalIP(t *testing.T) {
	h := NewHostStation(logger.NewTestLogger())
	h.addrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)},
		}, nil
	}
	assert.True(t, h.Connected())
	assert.Equal(t, "192.168.1.20", h.LocalIP())

	h.addrs = func() ([]net.Addr, error) { return nil, nil }
	assert.False(t, h.Connected())
}

func TestSimInputsAreConsumed(t *testing.T) {
	s := NewSim(logger.NewTestLogger())
	s.TriggerMotion()
	s.PressButton()
	s.PressKeys("12x#")

	assert.True(t, s.Motion())
	assert.False(t, s.Motion())
	assert.True(t, s.Button())
	assert.False(t, s.Button())

	var kinds []KeyKind
	for {
		k, ok := s.NextKey()
		if !ok {
			break
		}
		kinds = append(kinds, k.Kind)
	}
	assert.Equal(t, []KeyKind{KeyDigit, KeyDigit, KeyClear, KeyBell}, kinds)
}

func TestSimOutputsAreRecorded(t *testing.T) {
	s := NewSim(logger.NewTestLogger())
	require.NoError(t, s.SetOpen(true))
	require.NoError(t, s.SetOpen(true))
	require.NoError(t, s.SetOpen(false))
	require.NoError(t, s.SetPower(true))

	assert.Equal(t, 1, s.Opens())
	assert.False(t, s.IsOpen())
	assert.True(t, s.Powered())
	assert.Equal(t, 1, s.PowerOns())
}
