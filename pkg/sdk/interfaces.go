package sdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// ErrNoAddress is returned when no lock address is configured.
var ErrNoAddress = errors.New("lock address is empty")

// APIError is a non-2xx answer from the lock.
type APIError struct {
	Code    int
	Message string
	// TimeRemaining is the lockout remainder in minutes, if any.
	TimeRemaining *int
}

func (e *APIError) Error() string {
	if e.TimeRemaining != nil {
		return fmt.Sprintf("lock returned %d: %s (%d min remaining)", e.Code, e.Message, *e.TimeRemaining)
	}
	return fmt.Sprintf("lock returned %d: %s", e.Code, e.Message)
}

// Unlocker opens the door.
type Unlocker interface {
	Unlock(ctx context.Context, pin, name string) error
}

// StatusReader reads the lock status.
type StatusReader interface {
	Status(ctx context.Context) (schema.StatusResponse, error)
}

// Configurer changes lock settings.
type Configurer interface {
	UpdateSettings(ctx context.Context, name, pin string, values map[string]any) error
}

// Lock is the full local API.
type Lock interface {
	Unlocker
	StatusReader
	Configurer
}

var _ Lock = (*Client)(nil)
