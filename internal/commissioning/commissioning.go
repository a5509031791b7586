// Package commissioning handles the pairing channel: network scans,
// the peer's address acknowledgment and the commissioning record.
package commissioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/device"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

var (
	ErrMalformedPayload   = errors.New("malformed pairing payload")
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidPairingCode = errors.New("invalid pairing code")
	ErrScanInProgress     = errors.New("scan already in progress")
	ErrScanFailed         = errors.New("network scan failed")
)

// messages are the error strings the pairing peer expects.
var messages = map[error]string{
	ErrMalformedPayload:   "JSON parse error",
	ErrMissingFields:      "Missing required fields",
	ErrInvalidPairingCode: "Invalid pairing code",
	ErrScanInProgress:     "Scan already in progress",
	ErrScanFailed:         "Network scan failed",
}

// Message returns the peer-facing text for err.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// MaxNetworks caps a scan result.
const MaxNetworks = 10

// Outcome says which branch a payload took.
type Outcome int

const (
	Ignored Outcome = iota
	Acknowledged
	ScanStarted
	Received
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Acknowledged:
		return "acknowledged"
	case ScanStarted:
		return "scan_started"
	case Received:
		return "received"
	case Rejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Notifier sends one document to the pairing peer.
type Notifier interface {
	Notify(v any) error
}

// Store is where an accepted record goes.
type Store interface {
	PairingCode() string
	SaveCommissioning(rec schema.CommissioningRecord) error
}

// Session is fed by the pairing transport's goroutine. The scan task is
// its only other goroutine.
type Session struct {
	store    Store
	scanner  device.Scanner
	notifier Notifier
	log      zerolog.Logger

	// ScanTimeout bounds a single scan.
	ScanTimeout time.Duration

	mu   sync.Mutex
	scan *ScanTask

	payloadReceived atomic.Bool
	ipAck           atomic.Bool
	peer            atomic.Bool
}

func New(store Store, scanner device.Scanner, notifier Notifier, log zerolog.Logger) *Session {
	return &Session{
		store:       store,
		scanner:     scanner,
		notifier:    notifier,
		log:         log,
		ScanTimeout: 30 * time.Second,
	}
}

// PayloadReceived reports whether a record has been accepted.
func (s *Session) PayloadReceived() bool { return s.payloadReceived.Load() }

// IPAcknowledged reports whether the peer confirmed our address.
func (s *Session) IPAcknowledged() bool { return s.ipAck.Load() }

// PeerConnected records pairing peer presence.
func (s *Session) PeerConnected(connected bool) {
	s.peer.Store(connected)
	if connected {
		s.log.Info().Msg("pairing client connected")
	} else {
		s.log.Info().Msg("pairing client disconnected")
	}
}

func (s *Session) Connected() bool { return s.peer.Load() }

// ScanTask returns the outstanding scan, or nil.
func (s *Session) ScanTask() *ScanTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan
}

// Submit handles one write from the pairing peer.
func (s *Session) Submit(payload []byte) (Outcome, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Ignored, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return s.reject(ErrMalformedPayload)
	}

	if text(doc["status"]) == schema.StatusIPAck {
		s.ipAck.Store(true)
		s.log.Info().Msg("peer acknowledged lock address")
		return Acknowledged, nil
	}
	if text(doc["request"]) == schema.RequestWifiNetworks {
		return s.startScan()
	}
	return s.commission(doc)
}

func (s *Session) commission(doc map[string]json.RawMessage) (Outcome, error) {
	for _, field := range schema.RequiredCommissioningFields {
		if _, ok := doc[field]; !ok {
			s.log.Warn().Str("field", field).Msg("missing required field")
			return s.reject(ErrMissingFields)
		}
	}

	rec := schema.CommissioningRecord{
		UserID:      text(doc["user_id"]),
		WifiSSID:    text(doc["wifi_ssid"]),
		WifiPwd:     text(doc["wifi_pwd"]),
		LockName:    text(doc["lock_name"]),
		Owner:       text(doc["owner"]),
		Pin:         text(doc["pin"]),
		PairingCode: text(doc["pairing_code"]),
		Token:       text(doc["token"]),
	}
	if rec.PairingCode != s.store.PairingCode() {
		return s.reject(ErrInvalidPairingCode)
	}

	if err := s.store.SaveCommissioning(rec); err != nil {
		s.log.Error().Err(err).Msg("storing credentials failed")
		return s.reject(err)
	}
	s.payloadReceived.Store(true)
	s.log.Info().Str("ssid", rec.WifiSSID).Str("lock_name", rec.LockName).Msg("credentials stored")
	s.send(schema.PairingStatus{Status: schema.StatusReceived})
	return Received, nil
}

func (s *Session) reject(err error) (Outcome, error) {
	s.log.Warn().Err(err).Msg("pairing payload rejected")
	s.send(schema.PairingError{Error: Message(err)})
	return Rejected, err
}

func (s *Session) send(v any) {
	if err := s.notifier.Notify(v); err != nil {
		s.log.Warn().Err(err).Msg("pairing notify failed")
	}
}

// text reads raw the way request fields are read, falling back to the
// literal text for objects and arrays.
func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var t schema.Text
	if err := t.UnmarshalJSON(raw); err == nil {
		return t.String()
	}
	return string(bytes.TrimSpace(raw))
}

// ScanTask is one background network scan. Done is closed once the
// session no longer references the task and the result has been sent.
type ScanTask struct {
	done     chan struct{}
	networks []schema.Network
	err      error
}

func (t *ScanTask) Done() <-chan struct{} { return t.done }

// Result is valid once Done is closed.
func (t *ScanTask) Result() ([]schema.Network, error) { return t.networks, t.err }

func (s *Session) startScan() (Outcome, error) {
	s.mu.Lock()
	if s.scan != nil {
		s.mu.Unlock()
		s.log.Warn().Msg("scan already in progress")
		s.send(schema.PairingError{Error: Message(ErrScanInProgress)})
		return Rejected, ErrScanInProgress
	}
	task := &ScanTask{done: make(chan struct{})}
	s.scan = task
	s.mu.Unlock()

	s.send(schema.PairingStatus{Status: schema.StatusScanning})
	go s.runScan(task)
	return ScanStarted, nil
}

func (s *Session) runScan(task *ScanTask) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ScanTimeout)
	defer cancel()

	var reply any
	nets, err := s.safeScan(ctx)
	if err != nil {
		task.err = err
		s.log.Error().Err(err).Msg("network scan failed")
		reply = schema.PairingError{Error: Message(ErrScanFailed)}
	} else {
		task.networks = Rank(nets)
		s.log.Info().Int("count", len(task.networks)).Msg("network scan complete")
		reply = schema.NetworkList{WifiNetworks: task.networks}
	}

	// Release the guard before replying so the peer can rescan at once.
	s.mu.Lock()
	s.scan = nil
	s.mu.Unlock()

	s.send(reply)
	close(task.done)
}

func (s *Session) safeScan(ctx context.Context) (nets []schema.Network, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner panic: %v", r)
		}
	}()
	return s.scanner.Scan(ctx)
}
