// Package metadata writes a JSON sidecar next to every downloaded media file
// so the file can be traced back to its post without the item sinks.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"igcrawler/pkg/feed"
)

// MediaMetadata describes one downloaded media file
type MediaMetadata struct {
	// Core identifiers
	MediaID string `json:"media_id"`
	Key     string `json:"key"`
	Handle  string `json:"handle"`
	URL     string `json:"url"`

	// File properties
	File     string `json:"file"`
	FileSize int64  `json:"file_size,omitempty"`

	// Timestamps
	TakenAt      *time.Time `json:"taken_at,omitempty"`
	DownloadedAt time.Time  `json:"downloaded_at"`

	// Content
	Caption string `json:"caption,omitempty"`

	// Engagement
	LikesCount    *int `json:"likes_count,omitempty"`
	CommentsCount *int `json:"comments_count,omitempty"`

	// People
	Collaborators []feed.Collaborator `json:"collaborators,omitempty"`

	Detail feed.DetailStatus `json:"detail"`
}

// FromItem builds the sidecar for item saved at mediaPath
func FromItem(handle string, item feed.Item, mediaPath string, fileSize int64) *MediaMetadata {
	return &MediaMetadata{
		MediaID:       item.MediaID(),
		Key:           item.Key,
		Handle:        handle,
		URL:           item.MediaURL,
		File:          filepath.Base(mediaPath),
		FileSize:      fileSize,
		TakenAt:       item.Timestamp,
		DownloadedAt:  time.Now().UTC(),
		Caption:       item.Caption,
		LikesCount:    item.LikeCount,
		CommentsCount: item.CommentCount,
		Collaborators: item.Collaborators,
		Detail:        item.Detail,
	}
}

// Path returns the sidecar path for a media file
func Path(mediaPath string) string {
	return mediaPath + ".json"
}

// Save writes the metadata next to mediaPath
func (m *MediaMetadata) Save(mediaPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(Path(mediaPath), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads the sidecar of mediaPath
func Load(mediaPath string) (*MediaMetadata, error) {
	data, err := os.ReadFile(Path(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta MediaMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// FormattedCaption returns the caption on one line, cut to maxLength runes
func (m *MediaMetadata) FormattedCaption(maxLength int) string {
	caption := strings.Join(strings.Fields(m.Caption), " ")
	runes := []rune(caption)
	if maxLength > 3 && len(runes) > maxLength {
		return string(runes[:maxLength-3]) + "..."
	}
	return caption
}

// Exists checks if a sidecar exists for mediaPath
func Exists(mediaPath string) bool {
	_, err := os.Stat(Path(mediaPath))
	return err == nil
}

// CleanOrphaned removes sidecars whose media file is gone and returns how
// many were removed
func CleanOrphaned(directory string) (int, error) {
	removed := 0
	err := filepath.WalkDir(directory, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		mediaPath := strings.TrimSuffix(path, ".json")
		if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove orphaned metadata %s: %w", path, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
