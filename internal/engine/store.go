// Package engine is the lock's persistent key/value store: an in-memory
// map of namespaces mirrored to one JSON file per namespace.
package engine

import "errors"

var (
	// ErrNamespaceNotFound is returned when a namespace holds no keys.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrKeyNotFound is returned when a key does not exist within a namespace.
	ErrKeyNotFound = errors.New("key not found")
)

// SystemNamespace is reserved for data the device keeps for itself.
const SystemNamespace = "_system"

// Preferences is the string/integer view the lock core uses. It mirrors
// the semantics of the firmware's non-volatile preferences: reads of a
// missing key return the zero value.
type Preferences interface {
	GetString(key string) string
	PutString(key, val string) error
	GetInt(key string) (int, bool)
	PutInt(key string, val int) error
	Remove(key string) error
	Clear() error
}
