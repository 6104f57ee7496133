// Package crawler enumerates the items of an infinite-scroll feed.
//
// A Controller drives a driver.PageDriver in rounds. Each round discovers the
// tiles currently on the page, extracts the ones whose key has not been seen,
// and scrolls for more. When a round finds nothing new the controller waits
// on a doubling interval, nudges the page by scrolling back and forward, and
// tries again until the wait budget is spent or the page stops loading.
//
// In feed.FullDetail mode every new tile is opened in its detail view. A Gate
// confirms the view actually moved on to the new item before it is read; a
// view that never renders or never advances yields the summary record flagged
// unavailable instead of aborting the session.
//
//	ctrl := crawler.NewController(page, crawler.Options{
//		OwnerPrefix: feed.OwnerPrefix("", "natgeo"),
//		Observers:   []crawler.RoundObserver{progress},
//	})
//	res, err := ctrl.Collect(ctx, 50, feed.FullDetail)
package crawler
