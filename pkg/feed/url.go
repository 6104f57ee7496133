package feed

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the site root profiles and posts live under
const DefaultBaseURL = "https://www.instagram.com"

// ProfileURL returns the profile page for handle
func ProfileURL(base, handle string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + NormalizeHandle(handle) + "/"
}

// OwnerPrefix is the key prefix of posts published by handle
func OwnerPrefix(base, handle string) string {
	return ProfileURL(base, handle)
}

// HandleFromKey returns the account segment of a post key such as
// https://www.instagram.com/<handle>/p/<code>/
func HandleFromKey(key string) string {
	segs := pathSegments(key)
	if len(segs) >= 2 && (segs[1] == "p" || segs[1] == "reel") {
		return strings.ToLower(segs[0])
	}
	return ""
}

// ShortcodeFromKey returns the post code following /p/ or /reel/
func ShortcodeFromKey(key string) string {
	segs := pathSegments(key)
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "p" || segs[i] == "reel" {
			return segs[i+1]
		}
	}
	return ""
}

func pathSegments(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SameItem reports whether two links name the same post. Links are compared
// by shortcode, so a relative detail link matches the absolute tile key.
func SameItem(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	ca, cb := ShortcodeFromKey(a), ShortcodeFromKey(b)
	return ca != "" && ca == cb
}
