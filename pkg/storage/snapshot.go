package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"igcrawler/pkg/feed"
)

// Snapshot keeps a JSON array of every item collected for a handle and
// rewrites it atomically after each write. Items from an existing snapshot
// are loaded first so re-runs extend it.
type Snapshot struct {
	path  string
	items []feed.Item
	index map[string]int
	mu    sync.Mutex
}

// OpenSnapshot loads path if it exists
func OpenSnapshot(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	s := &Snapshot{path: path, index: make(map[string]int)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &s.items); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	for i, it := range s.items {
		s.index[it.Key] = i
	}
	return s, nil
}

func (s *Snapshot) Name() string { return "snapshot" }

// Path returns the snapshot file path
func (s *Snapshot) Path() string { return s.path }

// Items returns a copy of the snapshot contents
func (s *Snapshot) Items() []feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feed.Item(nil), s.items...)
}

// Write adds new items, upgrades summary records that now have full detail,
// and rewrites the file
func (s *Snapshot) Write(ctx context.Context, handle string, items []feed.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, it := range items {
		if it.Key == "" {
			continue
		}
		if i, ok := s.index[it.Key]; ok {
			if s.items[i].Detail != feed.DetailComplete && it.Detail == feed.DetailComplete {
				s.items[i] = it
				changed = true
			}
			continue
		}
		s.index[it.Key] = len(s.items)
		s.items = append(s.items, it)
		changed = true
	}
	if !changed {
		return nil
	}
	return s.flush()
}

func (s *Snapshot) flush() error {
	out := append([]feed.Item(nil), s.items...)
	feed.SortByTimestamp(out)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func (s *Snapshot) Close() error { return nil }
