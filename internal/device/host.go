package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

var ErrNoAddress = errors.New("no routable address")

// HostStation treats the host's own network as the joined station. It
// does not reconfigure the host; Begin only records the target SSID.
type HostStation struct {
	mu       sync.Mutex
	log      zerolog.Logger
	ssid     string
	hostname string
	addrs    func() ([]net.Addr, error)
}

// NewHostStation returns a station backed by the host interfaces.
func NewHostStation(log zerolog.Logger) *HostStation {
	return &HostStation{log: log, addrs: net.InterfaceAddrs}
}

func (h *HostStation) Begin(ssid, psk string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ssid = ssid
	h.log.Info().Str("ssid", ssid).Msg("joining network")
	return nil
}

// Connected reports whether the host has a routable address.
func (h *HostStation) Connected() bool {
	return h.LocalIP() != ""
}

// LocalIP returns the first non-loopback IPv4 address.
func (h *HostStation) LocalIP() string {
	addrs, err := h.addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

func (h *HostStation) SetHostname(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostname = name
	h.log.Info().Str("hostname", name).Msg("hostname set")
	return nil
}

// Hostname returns the last name passed to SetHostname.
func (h *HostStation) Hostname() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hostname
}

func (h *HostStation) EnablePowerSave(listenInterval int) error {
	h.log.Info().Int("listen_interval", listenInterval).Msg("modem sleep enabled")
	return nil
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// NMCLIScanner lists networks through NetworkManager.
type NMCLIScanner struct {
	Run Runner
}

// NewNMCLIScanner returns a scanner that shells out to nmcli.
func NewNMCLIScanner() *NMCLIScanner {
	return &NMCLIScanner{Run: execRunner}
}

func (s *NMCLIScanner) Scan(ctx context.Context) ([]schema.Network, error) {
	run := s.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, "nmcli", "-t", "-f", "SSID,SIGNAL,SECURITY", "dev", "wifi", "list")
	if err != nil {
		return nil, fmt.Errorf("nmcli: %w", err)
	}
	return ParseNMCLI(out), nil
}

// ParseNMCLI decodes terse nmcli output. Signal quality (0-100) is
// mapped onto dBm so callers can rank by RSSI. Hidden networks are
// skipped.
func ParseNMCLI(out []byte) []schema.Network {
	var nets []schema.Network
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := splitTerse(sc.Text())
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		quality, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		sec := strings.TrimSpace(fields[2])
		nets = append(nets, schema.Network{
			SSID:    fields[0],
			RSSI:    quality/2 - 100,
			Secured: sec != "" && sec != "--",
		})
	}
	return nets
}

// splitTerse splits on ':' honouring nmcli's backslash escapes.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

// StaticScanner returns a fixed list. Used when no scanner is available.
type StaticScanner struct {
	Networks []schema.Network
	Err      error
}

func (s StaticScanner) Scan(context.Context) ([]schema.Network, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]schema.Network(nil), s.Networks...), nil
}
