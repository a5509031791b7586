// Package settings applies authenticated batches of setting changes
// from the local API.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/celerix-dev/celerix-lock/internal/access"
	"github.com/celerix-dev/celerix-lock/internal/notify"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

var (
	ErrParse          = errors.New("settings request not well-formed")
	ErrUnauthorized   = errors.New("unauthorized settings request")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrLockedOut      = errors.New("authorization locked out")
	ErrBadRequest     = errors.New("settings object missing")
	ErrInvalidValue   = errors.New("invalid setting value")
	ErrStorage        = errors.New("setting not stored")
)

var messages = map[error]string{
	ErrParse:          "Parsing failed. Try Again.",
	ErrUnauthorized:   "Unauthorized Access",
	ErrUnknownSetting: "Unknown settings. May need firmware update",
	ErrLockedOut:      "Authorization Timeout",
	ErrBadRequest:     "Bad request.",
	ErrInvalidValue:   "Bad request.",
	ErrStorage:        "Settings could not be saved",
}

// ShareAnalytics enables the settings telemetry record.
const ShareAnalytics = "share_analytics"

// Store is the persisted configuration the handler reads and writes.
type Store interface {
	Owner() string
	LockName() string
	Setting(name string) (int, bool)
	SetSetting(name string, val int) error
	Value(key string) string
	SetValue(key, val string) error
}

// Waker forwards reconfiguration commands to the co-processor.
type Waker interface {
	Wake(now time.Time, cmd schema.VisionCommand)
}

// EventSink records telemetry.
type EventSink interface {
	Log(event string, data map[string]any)
}

// Response is an HTTP status plus its JSON body.
type Response struct {
	Code int
	Body schema.Response
	Err  error
}

// Change is one accepted option with its merged value.
type Change struct {
	Option string
	Int    int
	Text   string
	By     string
}

// Option is one recognized setting. Text options hold strings; all
// others hold integers.
type Option struct {
	Name string
	Text bool
	// Validate, if set, vets the raw value before anything in the batch
	// is written.
	Validate func(raw json.RawMessage) error
	Effect   func(h *Handler, now time.Time, c Change)
}

type Handler struct {
	guard    *access.Guard
	lockout  *access.Lockout
	store    Store
	waker    Waker
	notifier notify.Sender
	events   EventSink
	log      zerolog.Logger
	options  map[string]Option

	// SkipOnValid reproduces the legacy loop in which a recognized
	// option is accepted but neither stored nor acted on.
	SkipOnValid bool
}

type Deps struct {
	Guard    *access.Guard
	Lockout  *access.Lockout
	Store    Store
	Waker    Waker
	Notifier notify.Sender
	Events   EventSink
}

// New builds a handler for the given options. With none it uses
// DefaultOptions.
func New(deps Deps, log zerolog.Logger, options ...Option) *Handler {
	if len(options) == 0 {
		options = DefaultOptions()
	}
	h := &Handler{
		guard:    deps.Guard,
		lockout:  deps.Lockout,
		store:    deps.Store,
		waker:    deps.Waker,
		notifier: deps.Notifier,
		events:   deps.Events,
		log:      log,
		options:  make(map[string]Option, len(options)),
	}
	for _, o := range options {
		h.options[o.Name] = o
	}
	return h
}

// Apply authenticates and applies one PATCH /update-settings body.
func (h *Handler) Apply(now time.Time, body []byte) Response {
	h.lockout.Tick(now)
	if h.lockout.Engaged(now) {
		minutes := int((h.lockout.Remaining(now) + time.Minute - 1) / time.Minute)
		resp := fail(http.StatusUnauthorized, ErrLockedOut)
		resp.Body.TimeRemaining = &minutes
		return resp
	}

	var req schema.SettingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fail(http.StatusBadRequest, fmt.Errorf("%w: %v", ErrParse, err))
	}

	if !h.guard.Check(req.Pin.String()) || req.Name.String() != h.store.Owner() {
		if h.lockout.RecordFailure(now) {
			h.log.Warn().Str("name", req.Name.String()).Msg("settings locked after repeated failures")
		}
		return fail(http.StatusUnauthorized, ErrUnauthorized)
	}
	h.lockout.RecordSuccess()

	if req.Settings == nil {
		return fail(http.StatusBadRequest, ErrBadRequest)
	}

	names := make([]string, 0, len(req.Settings))
	for name, raw := range req.Settings {
		opt, ok := h.options[name]
		if !ok {
			h.log.Warn().Str("option", name).Msg("unknown setting, batch rejected")
			return fail(http.StatusBadRequest, fmt.Errorf("%w: %s", ErrUnknownSetting, name))
		}
		if opt.Validate != nil {
			if err := opt.Validate(raw); err != nil {
				h.log.Warn().Err(err).Str("option", name).Msg("invalid setting value, batch rejected")
				return fail(http.StatusBadRequest, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err))
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if h.SkipOnValid {
		return Response{Code: http.StatusOK, Body: schema.Response{Status: schema.StatusSuccess}}
	}

	applied := make(map[string]any, len(names))
	for _, name := range names {
		opt := h.options[name]
		c, err := h.merge(opt, req.Settings[name])
		if err != nil {
			h.log.Error().Err(err).Str("option", name).Msg("storing setting failed")
			return fail(http.StatusInternalServerError, fmt.Errorf("%w: %s: %v", ErrStorage, name, err))
		}
		c.By = req.Name.String()
		if opt.Text {
			applied[name] = c.Text
		} else {
			applied[name] = c.Int
		}
		if opt.Effect != nil {
			opt.Effect(h, now, c)
		}
	}
	h.log.Info().Strs("options", names).Msg("settings updated")

	if v, _ := h.store.Setting(ShareAnalytics); v != 0 {
		h.events.Log("settings", map[string]any{"type": "settings", "settings": applied})
	}
	return Response{Code: http.StatusOK, Body: schema.Response{Status: schema.StatusSuccess}}
}

// merge stores the request value when it has the option's type and the
// stored value otherwise.
func (h *Handler) merge(opt Option, raw json.RawMessage) (Change, error) {
	c := Change{Option: opt.Name}
	isNull := string(bytes.TrimSpace(raw)) == "null"
	if opt.Text {
		c.Text = h.store.Value(opt.Name)
		var t schema.Text
		if err := t.UnmarshalJSON(raw); err == nil && !isNull {
			c.Text = t.String()
		}
		return c, h.store.SetValue(opt.Name, c.Text)
	}

	c.Int, _ = h.store.Setting(opt.Name)
	if v, ok := intValue(raw); ok && !isNull {
		c.Int = v
	}
	return c, h.store.SetSetting(opt.Name, c.Int)
}

func intValue(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func fail(code int, err error) Response {
	msg := err.Error()
	for sentinel, m := range messages {
		if errors.Is(err, sentinel) {
			msg = m
			break
		}
	}
	return Response{
		Code: code,
		Body: schema.Response{Status: schema.StatusFail, Error: msg},
		Err:  err,
	}
}
