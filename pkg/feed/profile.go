package feed

import "strings"

// Profile is the header of an account page. Counts are nil when the page did
// not show them.
type Profile struct {
	Handle    string `json:"handle"`
	Name      string `json:"name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Posts     *int   `json:"posts,omitempty"`
	Followers *int   `json:"followers,omitempty"`
	Following *int   `json:"following,omitempty"`
}

// FirstCount returns the first word of s that parses as a count, so
// "View all 1,204 comments" yields 1204
func FirstCount(s string) (int, bool) {
	for _, word := range strings.Fields(s) {
		if n, ok := ParseCount(word); ok {
			return n, true
		}
	}
	return 0, false
}
