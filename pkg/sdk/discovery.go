package sdk

import "os"

// AddrEnv names the variable holding the lock address.
const AddrEnv = "CELERIX_LOCK_ADDR"

// DefaultAddr is used when AddrEnv is unset.
const DefaultAddr = "127.0.0.1:80"

// FromEnv connects to the lock named by AddrEnv, or DefaultAddr.
func FromEnv() (*Client, error) {
	addr := os.Getenv(AddrEnv)
	if addr == "" {
		addr = DefaultAddr
	}
	return Connect(addr)
}
