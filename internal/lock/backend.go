package lock

import (
	"context"
	"net/http"
	"time"

	"github.com/celerix-dev/celerix-lock/internal/settings"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Unlock checks pin and opens the door for name. Failures here are not
// counted toward the settings lockout.
func (l *Lock) Unlock(ctx context.Context, req schema.UnlockRequest) (bool, error) {
	return call(ctx, l, func(time.Time) bool {
		if !l.Guard.Check(req.Pin.String()) {
			return false
		}
		l.Door.Unlock(req.Name.String())
		return true
	})
}

// UpdateSettings applies a settings batch on the loop goroutine.
func (l *Lock) UpdateSettings(ctx context.Context, body []byte) (settings.Response, error) {
	resp, err := call(ctx, l, func(now time.Time) settings.Response {
		return l.Settings.Apply(now, body)
	})
	if err != nil {
		return settings.Response{Code: http.StatusServiceUnavailable}, err
	}
	return resp, nil
}

// Status reports the configured identity and a fresh battery level.
func (l *Lock) Status(ctx context.Context) (schema.StatusResponse, error) {
	return call(ctx, l, func(time.Time) schema.StatusResponse {
		st := schema.StatusResponse{
			LockName: l.Profile.LockName(),
			Owner:    l.Profile.Owner(),
			WifiSSID: l.Profile.WifiSSID(),
		}
		if l.Battery != nil {
			st.Battery = l.Battery.Level()
		}
		return st
	})
}
