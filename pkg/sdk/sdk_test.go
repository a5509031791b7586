package sdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
	"github.com/celerix-dev/celerix-lock/pkg/sdk"
)

func TestConnectNormalizesAddr(t *testing.T) {
	c, err := sdk.Connect("10.0.0.5:80/")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Addr() != "http://10.0.0.5:80" {
		t.Errorf("Expected http://10.0.0.5:80, got %s", c.Addr())
	}

	if _, err := sdk.Connect("  "); !errors.Is(err, sdk.ErrNoAddress) {
		t.Errorf("Expected ErrNoAddress, got %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(sdk.AddrEnv, "https://front-door.local")
	c, err := sdk.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if c.Addr() != "https://front-door.local" {
		t.Errorf("Unexpected addr %s", c.Addr())
	}
}

func TestClient_Integration(t *testing.T) {
	var gotSettings schema.SettingsRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /unlock", func(w http.ResponseWriter, r *http.Request) {
		var req schema.UnlockRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Pin != "1234" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(schema.Response{Status: schema.StatusFail, Error: "Wrong pin stored, pin may have been updated"})
			return
		}
		json.NewEncoder(w).Encode(schema.Response{Status: schema.StatusSuccess})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(schema.StatusResponse{LockName: "Front", Owner: "Alice", WifiSSID: "Home", Battery: 80})
	})
	mux.HandleFunc("PATCH /update-settings", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotSettings)
		json.NewEncoder(w).Encode(schema.Response{Status: schema.StatusSuccess})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := sdk.Connect(srv.URL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	ctx := context.Background()

	if err := client.Unlock(ctx, "1234", "Bob"); err != nil {
		t.Errorf("Unlock failed: %v", err)
	}

	err = client.Unlock(ctx, "0000", "Bob")
	if !sdk.IsUnauthorized(err) {
		t.Errorf("Expected unauthorized, got %v", err)
	}
	var apiErr *sdk.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Wrong pin stored, pin may have been updated" {
		t.Errorf("Unexpected error body: %v", err)
	}

	st, err := client.Status(ctx)
	if err != nil || st.LockName != "Front" || st.Battery != 80 {
		t.Errorf("Status failed: %+v, %v", st, err)
	}

	err = client.UpdateSettings(ctx, "Alice", "1234", map[string]any{"call_timeout": 40, "lock_name": "Back"})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if string(gotSettings.Settings["call_timeout"]) != "40" || string(gotSettings.Settings["lock_name"]) != `"Back"` {
		t.Errorf("Unexpected settings sent: %v", gotSettings.Settings)
	}
	if gotSettings.Name != "Alice" || gotSettings.Pin != "1234" {
		t.Errorf("Unexpected credentials sent: %+v", gotSettings)
	}
}

func TestClient_LockoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining := 4
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(schema.Response{Status: schema.StatusFail, Error: "Authorization Timeout", TimeRemaining: &remaining})
	}))
	defer srv.Close()

	client, _ := sdk.Connect(srv.URL)
	err := client.UpdateSettings(context.Background(), "Alice", "1234", map[string]any{"share_analytics": 1})

	var apiErr *sdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.TimeRemaining == nil || *apiErr.TimeRemaining != 4 {
		t.Errorf("Expected 4 minutes remaining, got %v", apiErr.TimeRemaining)
	}
}

func TestClient_RetryLogic(t *testing.T) {
	// Grab a free port, then close it so every dial is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	client, _ := sdk.Connect(addr)
	client.Backoff = time.Millisecond

	_, err = client.Status(context.Background())
	if err == nil {
		t.Fatal("Expected error from closed port")
	}
	if sdk.IsUnauthorized(err) {
		t.Errorf("Transport failure reported as unauthorized: %v", err)
	}
}

func TestClient_NoRetryOnHTTPError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, _ := sdk.Connect(srv.URL)
	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
