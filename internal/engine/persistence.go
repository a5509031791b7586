package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Persistence handles the disk I/O for the MemStore.
type Persistence struct {
	DataDir string
	log     zerolog.Logger
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	written map[string]uint64
	seq     atomic.Uint64
}

// NewPersistence initializes a persistence handler rooted at dir.
func NewPersistence(dir string, log zerolog.Logger) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir, log: log, written: make(map[string]uint64)}, nil
}

// ticket orders snapshots taken by the MemStore.
func (p *Persistence) ticket() uint64 {
	return p.seq.Add(1)
}

// SaveNamespace writes a namespace to its JSON file atomically. Writes
// carrying a version older than the last one written are skipped.
func (p *Persistence) SaveNamespace(namespace string, version uint64, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if version != 0 && version <= p.written[namespace] {
		return nil
	}

	filePath := filepath.Join(p.DataDir, fmt.Sprintf("%s.json", namespace))
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, bytes, 0o600); err != nil {
		p.log.Error().Err(err).Str("namespace", namespace).Msg("write preferences failed")
		return err
	}

	// Rename is atomic: after a power cut the file is either the old or
	// the new version.
	if err := os.Rename(tempPath, filePath); err != nil {
		p.log.Error().Err(err).Str("namespace", namespace).Msg("commit preferences failed")
		return err
	}
	p.written[namespace] = version
	return nil
}

// LoadAll returns every namespace found in the data directory.
func (p *Persistence) LoadAll() (map[string]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[string]any)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		namespace := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			p.log.Warn().Err(err).Str("file", file.Name()).Msg("could not read preferences file")
			continue
		}

		var data map[string]any
		if err := json.Unmarshal(content, &data); err != nil {
			p.log.Warn().Err(err).Str("file", file.Name()).Msg("could not unmarshal preferences file")
			continue
		}
		allData[namespace] = data
	}
	return allData, nil
}

// Open loads dir and returns a MemStore persisting back into it.
func Open(dir string, log zerolog.Logger) (*MemStore, error) {
	p, err := NewPersistence(dir, log)
	if err != nil {
		return nil, err
	}
	data, err := p.LoadAll()
	if err != nil {
		return nil, err
	}
	return NewMemStore(data, p), nil
}
