package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// HTTPRegistrar posts the registration to <Endpoint>/register.
type HTTPRegistrar struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPRegistrar(endpoint string) *HTTPRegistrar {
	return &HTTPRegistrar{Endpoint: strings.TrimRight(endpoint, "/"), Client: &http.Client{}}
}

// Register succeeds only on 201 Created.
func (r *HTTPRegistrar) Register(ctx context.Context, token string, reg schema.Registration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint+"/register", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("register returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
