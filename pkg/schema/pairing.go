// Package schema defines the JSON documents exchanged by the lock over
// its pairing channel, local REST API, remote channel and co-processor
// link. Documents are built as tagged structs and serialized once at
// the boundary.
package schema

// Pairing request discriminators.
const (
	StatusIPAck         = "ip_ack"
	RequestWifiNetworks = "wifi_networks"
)

// Pairing response statuses.
const (
	StatusScanning     = "scanning"
	StatusReceived     = "received"
	StatusWifiFail     = "wifi_fail"
	StatusDisconnected = "disconnected"
)

// CommissioningRecord is the credential bundle written by the paired
// phone. The pairing code gates acceptance and is never persisted.
type CommissioningRecord struct {
	UserID      string `json:"user_id"`
	WifiSSID    string `json:"wifi_ssid"`
	WifiPwd     string `json:"wifi_pwd"`
	LockName    string `json:"lock_name"`
	Owner       string `json:"owner"`
	Pin         string `json:"pin"`
	PairingCode string `json:"pairing_code"`
	Token       string `json:"token"`
}

// RequiredCommissioningFields lists every key a record must carry.
var RequiredCommissioningFields = []string{
	"user_id", "wifi_ssid", "wifi_pwd", "lock_name", "owner", "pin", "pairing_code", "token",
}

// PairingStatus is a bare {"status": ...} notification.
type PairingStatus struct {
	Status string `json:"status"`
}

// PairingError is a bare {"error": ...} notification.
type PairingError struct {
	Error string `json:"error"`
}

// Network is one visible access point in a scan result.
type Network struct {
	SSID    string `json:"ssid"`
	RSSI    int    `json:"rssi"`
	Secured bool   `json:"secured"`
}

// NetworkList answers a wifi_networks request.
type NetworkList struct {
	WifiNetworks []Network `json:"wifi_networks"`
}

// LockInfo tells the paired peer how to reach the local API.
type LockInfo struct {
	LockID   string `json:"lock_id"`
	LockIP   string `json:"lock_ip"`
	Hostname string `json:"hostname"`
}
