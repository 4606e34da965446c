// Package fs provides a file-backed credential store. Session state is kept
// as a JSON file with owner-only permissions, so a login survives process
// restarts the way a browser session survives a reload.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists credential-store keys as a single JSON file.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

type stateFile struct {
	Values map[string]string `json:"values"`
}

// New creates a file-backed store. If path is empty, it defaults to
// ~/.config/<appName>/session.json. A missing file is an empty store, not
// an error.
func New(path string, appName string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "clubs"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}

	s := &Store{
		path:   path,
		values: make(map[string]string),
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file stateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	s.values = file.Values
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return nil
}

// Get returns the value stored under key, or "" if none is stored.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores value under key and writes the file through.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flush()
}

// Remove deletes the value stored under key and writes the file through.
// Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

// flush writes the state file with owner-only permissions. Caller must
// hold s.mu.
func (s *Store) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(stateFile{Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}

// Path returns the path to the session file.
func (s *Store) Path() string {
	return s.path
}
