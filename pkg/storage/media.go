package storage

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

var mediaExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true, ".mp4": true}

// MediaStore keeps downloaded media files under one directory, named by media ID
type MediaStore struct {
	dir    string
	stored map[string]string
	mu     sync.RWMutex
}

// NewMediaStore creates dir if needed and indexes the files already in it
func NewMediaStore(dir string) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	m := &MediaStore{dir: dir, stored: make(map[string]string)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || !mediaExts[ext] {
			continue
		}
		m.stored[strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))] = entry.Name()
	}
	return m, nil
}

// IsStored reports whether media for id has been saved
func (m *MediaStore) IsStored(id string) bool {
	m.mu.RLock()
	_, ok := m.stored[id]
	m.mu.RUnlock()
	return ok
}

// Save writes r to <id><ext> atomically through a temporary file
func (m *MediaStore) Save(r io.Reader, id, ext string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("media id is empty")
	}
	if ext == "" {
		ext = ".jpg"
	}
	name := id + ext
	filename := filepath.Join(m.dir, name)

	tmp, err := os.CreateTemp(m.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	_, err = io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), filename)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save media %s: %w", id, err)
	}

	m.mu.Lock()
	m.stored[id] = name
	m.mu.Unlock()
	return filename, nil
}

// Dir returns the media directory
func (m *MediaStore) Dir() string {
	return m.dir
}

// Count returns the number of stored media files
func (m *MediaStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stored)
}

// ExtFromURL guesses a file extension from a media URL, defaulting to .jpg
func ExtFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if mediaExts[ext] {
		return ext
	}
	return ".jpg"
}
