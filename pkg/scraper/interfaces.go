package scraper

import (
	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
)

// ProgressReporter follows a crawl for the user. ui.ProgressDisplay and the
// tui dashboard both implement it.
type ProgressReporter interface {
	crawler.RoundObserver
	// ProfileLoaded is called once before the first round with the profile
	// header and the number of items the crawl will try to collect
	ProfileLoaded(profile feed.Profile, target int)
	DownloadFinished(mediaID string, skipped bool, err error)
	Finished(collected int, reason string, err error)
}
