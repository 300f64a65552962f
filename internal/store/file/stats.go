// Package file implements the stats store as a single JSON document,
// rewritten atomically on every save.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/otpower88/grabbot/internal/store"
)

type document struct {
	TotalAttempts int               `json:"totalAttempts"`
	SuccessCount  int               `json:"successCount"`
	Settings      map[string]string `json:"settings,omitempty"`
}

// StatsStore persists stats to a JSON file.
type StatsStore struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open reads the document at path, creating parent directories as needed.
// A missing file is not an error.
func Open(path string) (*StatsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create stats dir: %w", err)
	}

	s := &StatsStore{path: path, doc: document{Settings: map[string]string{}}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read stats file: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse stats file: %w", err)
	}
	if s.doc.Settings == nil {
		s.doc.Settings = map[string]string{}
	}
	return s, nil
}

func (s *StatsStore) Load() (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Stats{
		TotalAttempts: s.doc.TotalAttempts,
		SuccessCount:  s.doc.SuccessCount,
	}, nil
}

func (s *StatsStore) Save(stats store.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.TotalAttempts = stats.TotalAttempts
	s.doc.SuccessCount = stats.SuccessCount
	return s.flushLocked()
}

func (s *StatsStore) GetString(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.doc.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

func (s *StatsStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Settings[key] = value
	return s.flushLocked()
}

func (s *StatsStore) Close() error { return nil }

// flushLocked writes the document via temp file + rename so a crash mid-save
// never truncates the previous state.
func (s *StatsStore) flushLocked() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write stats file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace stats file: %w", err)
	}
	return nil
}
