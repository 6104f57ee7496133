package feed

import (
	"sort"
	"time"
)

// Unavailable marks a field the page did not expose for an item
const Unavailable = "N/A"

// Mode selects how much of each item is extracted
type Mode int

const (
	// Summary reads only what the feed tile exposes: key and media reference
	Summary Mode = iota
	// FullDetail opens each item's detail view for caption, collaborators and comments
	FullDetail
)

func (m Mode) String() string {
	if m == FullDetail {
		return "full_detail"
	}
	return "summary"
}

// DetailStatus records how far extraction got for an item
type DetailStatus string

const (
	DetailSummary     DetailStatus = "summary"
	DetailComplete    DetailStatus = "complete"
	DetailUnavailable DetailStatus = "unavailable"
)

// CollabKind distinguishes caption mentions from tagged header accounts
type CollabKind string

const (
	CollabMention CollabKind = "collab"
	CollabTag     CollabKind = "tag"
)

// Collaborator is a normalized account handle associated with an item
type Collaborator struct {
	Handle string     `json:"handle"`
	Kind   CollabKind `json:"kind"`
}

// Comment is a single comment read from an item's detail view
type Comment struct {
	Author    string     `json:"author"`
	Text      string     `json:"text"`
	Mentions  []string   `json:"mentions,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Item is one feed entry. Key is the canonical post URL and is never
// rewritten once the item has been accepted.
type Item struct {
	Key           string         `json:"key"`
	MediaURL      string         `json:"media_url"`
	Caption       string         `json:"caption,omitempty"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
	Timestamp     *time.Time     `json:"timestamp,omitempty"`
	LikeCount     *int           `json:"like_count,omitempty"`
	CommentCount  *int           `json:"comment_count,omitempty"`
	Comments      []Comment      `json:"comments,omitempty"`
	Detail        DetailStatus   `json:"detail"`
}

// MediaID returns the shortcode part of the item key, or "" if the key is not a post URL
func (it Item) MediaID() string {
	return ShortcodeFromKey(it.Key)
}

// Handles returns the collaborator handles in first-seen order
func (it Item) Handles() []string {
	out := make([]string, 0, len(it.Collaborators))
	for _, c := range it.Collaborators {
		out = append(out, c.Handle)
	}
	return out
}

// SortByTimestamp orders items newest first. Items without a timestamp keep
// their relative order and sort after dated ones.
func SortByTimestamp(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Timestamp, items[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
