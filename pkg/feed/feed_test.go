package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHandle(t *testing.T) {
	tests := map[string]string{
		"  @NatGeo ":  "natgeo",
		"natgeo":      "natgeo",
		"@nat.geo.":   "nat.geo",
		"@":           "",
		"   ":         "",
		"@@twice":     "@twice",
		"Under_Score": "under_score",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHandle(in), "input %q", in)
	}
}

func TestParseMentions(t *testing.T) {
	got := ParseMentions("Shot with @Alice and @bob.smith. Thanks @alice!")
	assert.Equal(t, []string{"alice", "bob.smith", "alice"}, got)
	assert.Empty(t, ParseMentions("no mentions here"))
}

func TestMergeCollaborators(t *testing.T) {
	var c []Collaborator
	c = MergeCollaborators(c, CollabTag, "Alice", " bob ")
	c = MergeCollaborators(c, CollabMention, "@alice", "@carol", "", "CAROL")

	assert.Equal(t, []Collaborator{
		{Handle: "alice", Kind: CollabTag},
		{Handle: "bob", Kind: CollabTag},
		{Handle: "carol", Kind: CollabMention},
	}, c)
	assert.Equal(t, []string{"alice", "bob", "carol"}, Item{Collaborators: c}.Handles())
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1,234", 1234, true},
		{"12.5K", 12500, true},
		{"3M", 3000000, true},
		{"987 likes", 987, true},
		{"0", 0, true},
		{"", 0, false},
		{"lots", 0, false},
		{"-4", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLHelpers(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/natgeo/", ProfileURL("", "@NatGeo"))
	assert.Equal(t, "http://localhost:8080/natgeo/", ProfileURL("http://localhost:8080/", "natgeo"))

	key := "https://www.instagram.com/natgeo/p/C1xYz_9/"
	assert.Equal(t, "natgeo", HandleFromKey(key))
	assert.Equal(t, "C1xYz_9", ShortcodeFromKey(key))
	assert.Equal(t, "C1xYz_9", Item{Key: key}.MediaID())

	assert.Equal(t, "", HandleFromKey("https://www.instagram.com/p/abc/"))
	assert.Equal(t, "abc", ShortcodeFromKey("https://www.instagram.com/p/abc/"))
	assert.Equal(t, "", ShortcodeFromKey("https://www.instagram.com/natgeo/"))
}

func TestSortByTimestamp(t *testing.T) {
	day := func(d int) *time.Time {
		ts := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}
	items := []Item{
		{Key: "a", Timestamp: day(1)},
		{Key: "b"},
		{Key: "c", Timestamp: day(3)},
		{Key: "d"},
		{Key: "e", Timestamp: day(2)},
	}

	SortByTimestamp(items)

	var keys []string
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"c", "e", "a", "b", "d"}, keys)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "summary", Summary.String())
	assert.Equal(t, "full_detail", FullDetail.String())
}

func TestSameItem(t *testing.T) {
	key := "https://www.instagram.com/natgeo/p/abc/"
	assert.True(t, SameItem(key, key))
	assert.True(t, SameItem(key, "/p/abc/"))
	assert.True(t, SameItem(" /natgeo/p/abc/ ", key))
	assert.False(t, SameItem(key, "/p/abd/"))
	assert.False(t, SameItem(key, ""))
	assert.False(t, SameItem("https://www.instagram.com/natgeo/", "https://www.instagram.com/nasa/"))
}

func TestFirstCount(t *testing.T) {
	n, ok := FirstCount("View all 1,204 comments")
	assert.True(t, ok)
	assert.Equal(t, 1204, n)

	n, ok = FirstCount("2.5M followers")
	assert.True(t, ok)
	assert.Equal(t, 2500000, n)

	_, ok = FirstCount("View all comments")
	assert.False(t, ok)
	_, ok = FirstCount("")
	assert.False(t, ok)
}
