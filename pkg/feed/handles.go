package feed

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9._]+)`)

// NormalizeHandle trims whitespace, strips one leading "@" and lower-cases
func NormalizeHandle(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "@")
	h = strings.TrimRight(strings.TrimSpace(h), ".")
	return strings.ToLower(h)
}

// ParseMentions returns the "@handle" tokens in text, normalized, in order of appearance
func ParseMentions(text string) []string {
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		if h := NormalizeHandle(m[1]); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// MergeCollaborators appends handles of the given kind to existing, skipping
// empty handles and any handle already present under either kind.
func MergeCollaborators(existing []Collaborator, kind CollabKind, handles ...string) []Collaborator {
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c.Handle] = struct{}{}
	}
	for _, raw := range handles {
		h := NormalizeHandle(raw)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		existing = append(existing, Collaborator{Handle: h, Kind: kind})
	}
	return existing
}

// ParseCount reads counts as the site renders them: "1,234", "12.5K", "3M".
func ParseCount(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1e3
	case 'm', 'M':
		mult = 1e6
	case 'b', 'B':
		mult = 1e9
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f * mult)), true
}
