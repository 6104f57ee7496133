// Package scraper runs a complete crawl of one profile.
//
// A run opens the profile in the page driver, hands the feed to a
// crawler.Controller and reacts to every finished round:
//
//   - new items are written to the configured sinks (JSON lines, snapshot,
//     Postgres) and their keys recorded in the checkpoint ledger
//   - when media download is enabled, each item's image is queued on the
//     downloader worker pool and stored under <output>/<handle>_media
//   - the progress reporter (plain terminal or dashboard) is updated
//
// Usage:
//
//	b, err := scraper.Launch(ctx, cfg, account, log)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	sinks, err := scraper.OpenSinks(ctx, cfg, handle, log)
//	if err != nil {
//	    return err
//	}
//	defer sinks.Close()
//
//	s := scraper.New(cfg, b, scraper.WithSink(sinks), scraper.WithCheckpoint(cpMgr))
//	result, err := s.Run(ctx, handle, scraper.RunOptions{Target: 100})
//
// Checkpoints:
//
// The checkpoint is a ledger of keys already persisted for the handle and is
// kept between runs, so a later crawl only writes items it has not seen. A
// run that did not finish leaves the checkpoint marked in progress; the next
// run must then ask for Resume or ForceRestart.
package scraper
