package schema

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// UnlockRequest is the POST /unlock body.
type UnlockRequest struct {
	Pin  Text `json:"pin"`
	Name Text `json:"name"`
}

// SettingsRequest is the PATCH /update-settings body. Settings values
// stay raw until the handler has validated the option names. Time is
// informational and accepted in any JSON form.
type SettingsRequest struct {
	Name     Text                       `json:"name"`
	Pin      Text                       `json:"pin"`
	Time     json.RawMessage            `json:"time,omitempty"`
	Settings map[string]json.RawMessage `json:"settings"`
}

// Response is the common status envelope of the local API.
type Response struct {
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	TimeRemaining *int   `json:"timeRemaining,omitempty"`
}

// StatusResponse is the GET /status body.
type StatusResponse struct {
	LockName string `json:"lock_name"`
	Owner    string `json:"owner"`
	WifiSSID string `json:"wifi_ssid"`
	Battery  int    `json:"battery"`
}

// Registration is posted to the backend once the lock joins a network.
type Registration struct {
	UserID          string `json:"userId"`
	LockID          string `json:"lockId"`
	LockName        string `json:"lockName"`
	Owner           string `json:"owner"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmwareVersion"`
}
