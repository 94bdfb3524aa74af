package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is a small file-backed store for runtime-editable settings,
// served over the /config HTTP routes. Unlike Config it can change while
// the process runs, so every mutation is written straight back to disk.
type Settings struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenSettings loads the settings file at path, creating it with defaults
// if absent.
func OpenSettings(path string) (*Settings, error) {
	s := &Settings{path: path, values: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read settings %s: %w", path, err)
		}
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("config: parse settings %s: %w", path, err)
	}
	return s, nil
}

// Get returns the value for key, or the empty string.
func (s *Settings) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set stores one value and persists the file.
func (s *Settings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.save()
}

// All returns a copy of every setting.
func (s *Settings) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Update applies several values at once and persists the file.
func (s *Settings) Update(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return s.save()
}

// save writes the settings atomically. Callers hold s.mu.
func (s *Settings) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal settings: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("config: write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("config: write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("config: write settings: %w", err)
	}
	return nil
}
