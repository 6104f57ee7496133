package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"igcrawler/pkg/feed"
)

// record is one line of the JSON-lines log
type record struct {
	Handle string `json:"handle"`
	feed.Item
}

// JSONLines appends one JSON object per item to a log file. Keys already in
// the file from earlier runs are not written again, except that a complete
// record is appended after a summary one; readers keep the last line per key.
type JSONLines struct {
	path string
	file *os.File
	keys map[string]feed.DetailStatus
	mu   sync.Mutex
}

// OpenJSONLines opens path for appending, creating it and its directory if needed
func OpenJSONLines(path string) (*JSONLines, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	keys, err := scanKeys(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &JSONLines{path: path, file: f, keys: keys}, nil
}

func scanKeys(path string) (map[string]feed.DetailStatus, error) {
	keys := make(map[string]feed.DetailStatus)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var r struct {
			Key    string            `json:"key"`
			Detail feed.DetailStatus `json:"detail"`
		}
		// a torn last line from a crashed run is skipped
		if json.Unmarshal(sc.Bytes(), &r) == nil && r.Key != "" {
			if keys[r.Key] != feed.DetailComplete {
				keys[r.Key] = r.Detail
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	return keys, nil
}

func (j *JSONLines) Name() string { return "jsonl" }

// Path returns the log file path
func (j *JSONLines) Path() string { return j.path }

func (j *JSONLines) Write(ctx context.Context, handle string, items []feed.Item) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	w := bufio.NewWriter(j.file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var written []feed.Item
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.Key == "" || !j.wants(it) {
			continue
		}
		if err := enc.Encode(record{Handle: handle, Item: it}); err != nil {
			return fmt.Errorf("failed to encode %s: %w", it.Key, err)
		}
		written = append(written, it)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to append to %s: %w", j.path, err)
	}
	for _, it := range written {
		j.keys[it.Key] = it.Detail
	}
	return j.file.Sync()
}

// wants reports whether it is new or upgrades a held summary to complete
func (j *JSONLines) wants(it feed.Item) bool {
	held, ok := j.keys[it.Key]
	if !ok {
		return true
	}
	return it.Detail == feed.DetailComplete && held != feed.DetailComplete
}

func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
