package engine

import (
	"encoding/json"
	"sort"
	"sync"
)

// MemStore is the thread-safe store engine.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [namespace][key]value
	data      map[string]map[string]any
	persister *Persistence
	wg        sync.WaitGroup
}

// NewMemStore initializes a store from existing data (from LoadAll)
// and an optional persister.
func NewMemStore(initialData map[string]map[string]any, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]any)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

func (m *MemStore) Get(namespace, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.data[namespace]
	if !ok {
		return nil, ErrNamespaceNotFound
	}
	val, ok := ns[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return val, nil
}

func (m *MemStore) Set(namespace, key string, val any) error {
	m.mu.Lock()
	if m.data[namespace] == nil {
		m.data[namespace] = make(map[string]any)
	}
	m.data[namespace][key] = val
	m.persistLocked(namespace)
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Delete(namespace, key string) error {
	m.mu.Lock()
	if ns, ok := m.data[namespace]; ok {
		delete(ns, key)
	}
	m.persistLocked(namespace)
	m.mu.Unlock()
	return nil
}

// ClearNamespace drops every key of a namespace.
func (m *MemStore) ClearNamespace(namespace string) error {
	m.mu.Lock()
	m.data[namespace] = make(map[string]any)
	m.persistLocked(namespace)
	m.mu.Unlock()
	return nil
}

// persistLocked snapshots a namespace and writes it in the background.
// It MUST be called while holding m.mu.Lock. The version guard keeps a
// slow older write from replacing a newer file.
func (m *MemStore) persistLocked(namespace string) {
	if m.persister == nil {
		return
	}
	version := m.persister.ticket()
	snapshot := m.copyNamespace(namespace)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persister.SaveNamespace(namespace, version, snapshot)
	}()
}

// copyNamespace must be called while holding m.mu.
func (m *MemStore) copyNamespace(namespace string) map[string]any {
	out := make(map[string]any, len(m.data[namespace]))
	for k, v := range m.data[namespace] {
		out[k] = v
	}
	return out
}

// Namespaces lists every namespace in sorted order.
func (m *MemStore) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for name := range m.data {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// Snapshot returns a copy of a namespace.
func (m *MemStore) Snapshot(namespace string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.data[namespace]; !ok {
		return nil, ErrNamespaceNotFound
	}
	return m.copyNamespace(namespace), nil
}

// Namespace pins a namespace and exposes it as Preferences.
func (m *MemStore) Namespace(name string) *Scope {
	return &Scope{store: m, name: name}
}

// Scope is a MemStore namespace seen through typed accessors.
type Scope struct {
	store *MemStore
	name  string
}

var _ Preferences = (*Scope)(nil)

func (s *Scope) GetString(key string) string {
	val, err := s.store.Get(s.name, key)
	if err != nil {
		return ""
	}
	str, _ := val.(string)
	return str
}

func (s *Scope) PutString(key, val string) error {
	return s.store.Set(s.name, key, val)
}

// GetInt reads an integer. Values loaded back from JSON arrive as
// float64 and are converted.
func (s *Scope) GetInt(key string) (int, bool) {
	val, err := s.store.Get(s.name, key)
	if err != nil {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func (s *Scope) PutInt(key string, val int) error {
	return s.store.Set(s.name, key, val)
}

func (s *Scope) Remove(key string) error {
	return s.store.Delete(s.name, key)
}

func (s *Scope) Clear() error {
	return s.store.ClearNamespace(s.name)
}

// Keys lists the keys currently set in the namespace.
func (s *Scope) Keys() []string {
	data, err := s.store.Snapshot(s.name)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
