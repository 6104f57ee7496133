package crawler

import (
	"context"
	"strings"

	"igcrawler/pkg/driver"
	"igcrawler/pkg/feed"
)

// ReadProfile reads the header of the profile page currently loaded in d.
// Fields the page does not show stay empty; only a done ctx is an error.
func ReadProfile(ctx context.Context, d driver.PageDriver, sel Selectors, handle string) (feed.Profile, error) {
	sel = sel.merge(DefaultSelectors())
	p := feed.Profile{Handle: feed.NormalizeHandle(handle)}

	read := func(s string, err error) string {
		if err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	p.Name = read(d.ReadText(ctx, nil, sel.ProfileName))
	p.Bio = read(d.ReadText(ctx, nil, sel.ProfileBio))
	p.PhotoURL = read(d.ReadAttribute(ctx, nil, sel.ProfilePhoto, "src"))

	// posts, followers, following in page order
	stats, err := d.Discover(ctx, sel.ProfileStats)
	if err == nil {
		counts := make([]*int, 0, 3)
		for _, h := range stats {
			if len(counts) == 3 {
				break
			}
			if n, ok := feed.FirstCount(read(d.ReadText(ctx, h, ""))); ok {
				counts = append(counts, &n)
			}
		}
		for i, dst := range []**int{&p.Posts, &p.Followers, &p.Following} {
			if i < len(counts) {
				*dst = counts[i]
			}
		}
	}

	return p, ctx.Err()
}
