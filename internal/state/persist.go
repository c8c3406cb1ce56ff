// internal/state/persist.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/agentdeck/internal/types"
)

// Persister mirrors the session store to a durable backend. The store calls
// Save after every mutation and Load once at startup, so the strategy is
// swappable without touching store logic.
type Persister interface {
	Save(sessions []*types.Session) error
	Load() ([]*types.Session, error)
}

// FilePersister writes the full session set as an indented JSON array at a
// single well-known path. Writes go to a temp file and are renamed into
// place so a crash mid-write never leaves a truncated store behind.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister backed by sessions.json under root.
func NewFilePersister(root string) *FilePersister {
	return &FilePersister{path: filepath.Join(root, "sessions.json")}
}

// Path returns the file path used by this persister.
func (f *FilePersister) Path() string {
	return f.path
}

// Save rewrites the snapshot atomically.
func (f *FilePersister) Save(sessions []*types.Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp sessions file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp sessions file: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty store, not an error.
func (f *FilePersister) Load() ([]*types.Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions file: %w", err)
	}

	var sessions []*types.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal sessions: %w", err)
	}
	return sessions, nil
}

// NullPersister drops every snapshot. Used by tests and by callers that
// want a purely in-memory store.
type NullPersister struct{}

func (NullPersister) Save([]*types.Session) error     { return nil }
func (NullPersister) Load() ([]*types.Session, error) { return nil, nil }
