// Package cache provides the local fast tier: a flat JSON key-value
// store on an afero filesystem. There are no transactions and no
// expiry; the last write wins. Callers treat it as a best-effort
// mirror of the remote store, never as a source of truth.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Key builders for the well-known collections.
func ArchivedEpicsKey(projectID string) string { return "archivedEpics_" + projectID }
func ArchivesKey(projectID string) string      { return "archives_" + projectID }

// Store is a JSON key-value store backed by one file per key.
type Store struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// New creates a cache store rooted at dir. A nil fs uses the OS
// filesystem; tests pass afero.NewMemMapFs().
func New(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir}
}

// DefaultDir returns the cache directory under the user's home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskvault/cache"
	}
	return filepath.Join(home, ".taskvault", "cache")
}

// Get reads the value stored under key into v. The boolean reports
// whether the key was present.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// A corrupt entry is treated as a miss so callers fall back
		// to the remote tier and overwrite it on the next Set.
		return false, nil
	}
	return true, nil
}

// Set stores v under key, replacing any previous value.
func (s *Store) Set(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := atomicWriteFile(s.fs, s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, sanitize(key)+".json")
}

// sanitize maps a key to a safe file name.
func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
