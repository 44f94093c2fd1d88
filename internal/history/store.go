package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists history entries.
type Store interface {
	Save(entries []string) error
	Load() ([]string, error) // returns nil, nil if nothing was saved yet
}

// diskStore writes history.json in the XDG data directory.
type diskStore struct {
	path string
}

// file is the on-disk layout.
type file struct {
	Version int      `json:"version"`
	Entries []string `json:"entries"`
}

// NewStore returns a Store backed by the XDG data directory.
// Path: $XDG_DATA_HOME/quickterm/history.json or ~/.local/share/quickterm/history.json
func NewStore() (Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, "history.json")}, nil
}

// dataDir returns the quickterm-specific XDG data directory.
func dataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "quickterm"), nil
}

// Save writes entries atomically via a temp file + os.Rename.
func (d *diskStore) Save(entries []string) (err error) {
	if entries == nil {
		entries = []string{}
	}
	data, err := json.Marshal(file{Version: 1, Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), "history-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist history: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// Load reads the history file. A missing file yields no entries.
func (d *diskStore) Load() ([]string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", d.path, err)
	}
	return f.Entries, nil
}
