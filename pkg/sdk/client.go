// Package sdk provides the client-side library for the lock's local API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Client talks to one lock over its local REST API.
type Client struct {
	base string
	http *http.Client

	// Attempts bounds retries on transport errors. HTTP error statuses
	// are returned as-is and never retried.
	Attempts int
	Backoff  time.Duration
}

// Connect returns a client for the lock at addr. A bare host:port is
// taken as plain http.
func Connect(addr string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrNoAddress
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base:     strings.TrimRight(addr, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
		Backoff:  200 * time.Millisecond,
	}, nil
}

// Addr returns the base URL of the lock.
func (c *Client) Addr() string { return c.base }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		var resp *http.Response
		resp, err = c.http.Do(req)
		if err == nil {
			return decode(resp, out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Fprintf(os.Stderr, "[Celerix SDK] Attempt %d failed: %v. Retrying...\n", i+1, err)
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * c.Backoff)
		}
	}
	return fmt.Errorf("failed after %d attempts. last error: %w", attempts, err)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	}

	apiErr := &APIError{Code: resp.StatusCode}
	var env schema.Response
	if json.Unmarshal(raw, &env) == nil {
		apiErr.Message = env.Error
		apiErr.TimeRemaining = env.TimeRemaining
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// Unlock asks the lock to open for name. A wrong pin is reported as an
// *APIError with code 401.
func (c *Client) Unlock(ctx context.Context, pin, name string) error {
	return c.do(ctx, http.MethodPost, "/unlock", schema.UnlockRequest{Pin: schema.Text(pin), Name: schema.Text(name)}, nil)
}

// Status returns the lock identity and battery level.
func (c *Client) Status(ctx context.Context) (schema.StatusResponse, error) {
	var st schema.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

// UpdateSettings applies a batch of settings. Values must be JSON
// encodable; numbers and booleans for numeric options, strings for
// lock_name and pin.
func (c *Client) UpdateSettings(ctx context.Context, name, pin string, values map[string]any) error {
	raw := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
		raw[k] = b
	}
	req := schema.SettingsRequest{
		Name:     schema.Text(name),
		Pin:      schema.Text(pin),
		Time:     json.RawMessage(strconv.FormatInt(time.Now().Unix(), 10)),
		Settings: raw,
	}
	return c.do(ctx, http.MethodPatch, "/update-settings", req, nil)
}

// IsUnauthorized reports whether err is a rejected pin or an engaged
// lockout.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}
