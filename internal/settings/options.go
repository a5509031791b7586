package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// DefaultOptions is the option set of the current firmware.
func DefaultOptions() []Option {
	return []Option{
		{Name: "motion_sensitivity"},
		{Name: "vid_quality", Effect: reconfigure(schema.VisionCmdSetVidQuality)},
		{Name: "call_timeout", Effect: reconfigure(schema.VisionCmdSetCallTimeout)},
		{Name: "snippet_time", Effect: reconfigure(schema.VisionCmdSetSnippetTime)},
		{Name: ShareAnalytics},
	}
}

// IdentityOptions adds renaming and pin changes to the default set. The
// daemon does not enable them; the companion app changes the identity
// through commissioning.
func IdentityOptions() []Option {
	return append(DefaultOptions(),
		Option{Name: "lock_name", Text: true, Effect: func(h *Handler, _ time.Time, c Change) {
			h.notifier.Notify("Change Lock Name", c.By+" changed "+h.store.Owner()+"'s lock to "+c.Text+".")
		}},
		Option{Name: "pin", Text: true, Validate: validPin, Effect: func(h *Handler, _ time.Time, c Change) {
			h.notifier.Notify("Pin changed", c.By+" changed "+h.store.Owner()+"'s "+h.store.LockName()+" pin.")
		}},
	)
}

func reconfigure(cmd string) func(h *Handler, now time.Time, c Change) {
	return func(h *Handler, now time.Time, c Change) {
		v := c.Int
		vc := schema.VisionCommand{Cmd: cmd}
		switch cmd {
		case schema.VisionCmdSetCallTimeout:
			vc.CallTimeout = &v
		case schema.VisionCmdSetSnippetTime:
			vc.SnippetTime = &v
		case schema.VisionCmdSetVidQuality:
			vc.VidQuality = &v
		}
		h.waker.Wake(now, vc)
	}
}

// maxPin matches the keypad buffer.
const maxPin = 12

var (
	errEmptyPin = errors.New("pin is empty")
	errPinChars = errors.New("pin must be 1 to 12 digits")
)

// validPin accepts null (keep the stored pin) or a string or number of
// digits. An empty pin would leave the guard failing open.
func validPin(raw json.RawMessage) error {
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var t schema.Text
	if err := t.UnmarshalJSON(raw); err != nil {
		return err
	}
	pin := t.String()
	if pin == "" {
		return errEmptyPin
	}
	if len(pin) > maxPin {
		return errPinChars
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errPinChars
		}
	}
	return nil
}
