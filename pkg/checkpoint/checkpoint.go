package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
)

const version = 3

// Checkpoint records what earlier runs for a handle already persisted so a
// resumed crawl only writes and downloads what is new
type Checkpoint struct {
	Handle          string               `json:"handle"`
	LastRunID       string               `json:"last_run_id"`
	LastRound       int                  `json:"last_round"`
	InProgress      bool                 `json:"in_progress"`
	PersistedKeys   map[string]time.Time `json:"persisted_keys"`
	CompleteKeys    map[string]bool      `json:"complete_keys,omitempty"` // persisted with full detail
	DownloadedMedia map[string]string    `json:"downloaded_media"`        // media id -> filename
	TotalPersisted  int                  `json:"total_persisted"`
	TotalDownloaded int                  `json:"total_downloaded"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Version         int                  `json:"version"`
}

// IsPersisted checks if an item key was written by an earlier round or run
func (c *Checkpoint) IsPersisted(key string) bool {
	_, ok := c.PersistedKeys[key]
	return ok
}

// IsComplete checks if an item key was persisted with full detail
func (c *Checkpoint) IsComplete(key string) bool {
	return c.CompleteKeys[key]
}

// IsDownloaded checks if media with the given id has been downloaded
func (c *Checkpoint) IsDownloaded(mediaID string) bool {
	_, ok := c.DownloadedMedia[mediaID]
	return ok
}

// Manager handles checkpoint operations. Its methods are safe for concurrent
// use so download workers can record progress alongside the crawl loop.
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager creates a checkpoint manager under the user data directory
func NewManager(handle string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "checkpoints"), handle)
}

// NewManagerAt creates a checkpoint manager storing its file in dir
func NewManagerAt(dir, handle string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	handle = feed.NormalizeHandle(handle)
	if handle == "" {
		return nil, fmt.Errorf("checkpoint handle is empty")
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, handle+".checkpoint.json"),
		logger:         logger.GetLogger(),
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a fresh checkpoint
func (m *Manager) Create(handle string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Handle:          feed.NormalizeHandle(handle),
		PersistedKeys:   make(map[string]time.Time),
		CompleteKeys:    make(map[string]bool),
		DownloadedMedia: make(map[string]string),
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"handle": cp.Handle,
		"path":   m.checkpointPath,
	})
	return cp, nil
}

// Load loads an existing checkpoint. It returns nil, nil when there is none.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.PersistedKeys == nil {
		cp.PersistedKeys = make(map[string]time.Time)
	}
	if cp.CompleteKeys == nil {
		cp.CompleteKeys = make(map[string]bool)
	}
	if cp.DownloadedMedia == nil {
		cp.DownloadedMedia = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"handle":           cp.Handle,
		"total_persisted":  cp.TotalPersisted,
		"total_downloaded": cp.TotalDownloaded,
		"updated_at":       cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cp)
}

func (m *Manager) save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"handle":          cp.Handle,
		"total_persisted": cp.TotalPersisted,
		"last_round":      cp.LastRound,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Unpersisted returns the items whose keys the checkpoint has not recorded yet,
// plus complete items whose key was only persisted as a summary
func (m *Manager) Unpersisted(cp *Checkpoint, items []feed.Item) []feed.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []feed.Item
	for _, it := range items {
		upgrade := it.Detail == feed.DetailComplete && !cp.IsComplete(it.Key)
		if !cp.IsPersisted(it.Key) || upgrade {
			out = append(out, it)
		}
	}
	return out
}

// Begin marks cp as owned by a running crawl. A checkpoint still in progress
// at the next start means that crawl was interrupted.
func (m *Manager) Begin(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.LastRound = 0
	cp.InProgress = true
	return m.save(cp)
}

// Finish marks the crawl that owns cp as ended
func (m *Manager) Finish(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.InProgress = false
	return m.save(cp)
}

// RecordRound marks keys as persisted by round of run runID
func (m *Manager) RecordRound(cp *Checkpoint, runID string, round int, keys []string) error {
	items := make([]feed.Item, len(keys))
	for i, k := range keys {
		items[i] = feed.Item{Key: k}
	}
	return m.RecordItems(cp, runID, round, items)
}

// RecordItems is RecordRound that also remembers which items had full detail
func (m *Manager) RecordItems(cp *Checkpoint, runID string, round int, items []feed.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, it := range items {
		if it.Detail == feed.DetailComplete {
			cp.CompleteKeys[it.Key] = true
		}
		if _, ok := cp.PersistedKeys[it.Key]; ok {
			continue
		}
		cp.PersistedKeys[it.Key] = now
		cp.TotalPersisted++
	}
	cp.LastRunID = runID
	cp.LastRound = round
	return m.save(cp)
}

// RecordDownload records a successfully downloaded media file
func (m *Manager) RecordDownload(cp *Checkpoint, mediaID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := cp.DownloadedMedia[mediaID]; !ok {
		cp.TotalDownloaded++
	}
	cp.DownloadedMedia[mediaID] = filename
	return m.save(cp)
}

// IsDownloaded checks cp under the manager lock
func (m *Manager) IsDownloaded(cp *Checkpoint, mediaID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cp.IsDownloaded(mediaID)
}

// GetCheckpointInfo returns a summary of the checkpoint, or nil if none exists
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	cp, err := m.Load()
	if err != nil || cp == nil {
		return nil, err
	}
	return map[string]interface{}{
		"handle":           cp.Handle,
		"total_persisted":  cp.TotalPersisted,
		"total_downloaded": cp.TotalDownloaded,
		"last_run_id":      cp.LastRunID,
		"in_progress":      cp.InProgress,
		"created_at":       cp.CreatedAt,
		"updated_at":       cp.UpdatedAt,
		"age":              time.Since(cp.UpdatedAt),
	}, nil
}

// BackupCheckpoint copies the current checkpoint next to itself
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(m.checkpointPath + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}
	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the per-OS data directory for igcrawler
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igcrawler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igcrawler")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igcrawler")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igcrawler")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
