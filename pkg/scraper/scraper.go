package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"igcrawler/internal/downloader"
	"igcrawler/pkg/checkpoint"
	"igcrawler/pkg/config"
	"igcrawler/pkg/crawler"
	"igcrawler/pkg/driver"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metadata"
	"igcrawler/pkg/ratelimit"
	"igcrawler/pkg/storage"
)

// ErrCheckpointExists is returned when an interrupted crawl left a checkpoint
// and neither resume nor force restart was requested
var ErrCheckpointExists = errors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

// FallbackTarget is collected when no target is given and the profile does
// not show its post count
const FallbackTarget = 12

// RunOptions select what one crawl collects. A zero Target collects every
// post the profile header reports.
type RunOptions struct {
	Target       int
	Mode         feed.Mode
	Resume       bool
	ForceRestart bool
}

// Scraper runs one crawl of a profile feed end to end: it opens the profile,
// drives the pagination controller, persists each round's new items and
// optionally downloads their media
type Scraper struct {
	config        *config.Config
	driver        driver.PageDriver
	sink          storage.Sink
	checkpointMgr *checkpoint.Manager
	reporter      ProgressReporter
	fetcher       downloader.Fetcher
	limiter       ratelimit.Limiter
	sleeper       crawler.Sleeper
	logger        logger.Logger
}

// Option configures a Scraper
type Option func(*Scraper)

// WithSink sets where items are persisted
func WithSink(sink storage.Sink) Option {
	return func(s *Scraper) { s.sink = sink }
}

// WithCheckpoint enables the persisted-key ledger
func WithCheckpoint(m *checkpoint.Manager) Option {
	return func(s *Scraper) { s.checkpointMgr = m }
}

// WithReporter sets the progress reporter
func WithReporter(r ProgressReporter) Option {
	return func(s *Scraper) { s.reporter = r }
}

// WithFetcher replaces the HTTP media fetcher
func WithFetcher(f downloader.Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

// WithLimiter replaces the per-minute limiter of media downloads
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Scraper) { s.limiter = l }
}

// WithSleeper replaces the controller's backoff wait
func WithSleeper(sl crawler.Sleeper) Option {
	return func(s *Scraper) { s.sleeper = sl }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// New creates a Scraper over an already signed-in driver
func New(cfg *config.Config, d driver.PageDriver, opts ...Option) *Scraper {
	s := &Scraper{
		config: cfg,
		driver: d,
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = storage.NewMultiSink()
	}
	if s.limiter == nil {
		// media requests go to the CDN, not the page; cap them per minute
		s.limiter = ratelimit.NewSlidingWindow(cfg.RateLimit.ActionsPerMinute, time.Minute)
	}
	return s
}

// Run collects up to opts.Target items from handle's feed. The crawl result
// is returned even when err is non-nil.
func (s *Scraper) Run(ctx context.Context, handle string, opts RunOptions) (*crawler.Result, error) {
	handle = feed.NormalizeHandle(handle)
	if handle == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "run", "handle is empty")
	}
	log := s.logger.WithField("handle", handle)

	logger.LogComponentStart("scraper", map[string]interface{}{
		"handle": handle,
		"target": opts.Target,
		"mode":   opts.Mode.String(),
	})

	cp, err := s.prepareCheckpoint(log, handle, opts)
	if err != nil {
		logger.LogComponentStop("scraper", "checkpoint")
		return nil, err
	}

	if err := s.openProfile(ctx, log, handle); err != nil {
		s.finishCheckpoint(log, cp)
		logger.LogComponentStop("scraper", "profile unavailable")
		s.finishReport(0, "not_found", err)
		return nil, err
	}

	profile := s.readProfile(ctx, log, handle)
	target := resolveTarget(opts.Target, profile)
	if s.reporter != nil {
		s.reporter.ProfileLoaded(profile, target)
	}

	p := &persister{scraper: s, handle: handle, checkpoint: cp, log: log}
	observers := []crawler.RoundObserver{p}

	var pool *mediaPool
	if s.config.Download.Enabled {
		pool, err = s.startMediaPool(ctx, handle, cp)
		if err != nil {
			s.finishCheckpoint(log, cp)
			logger.LogComponentStop("scraper", "media store")
			return nil, err
		}
		p.media = pool
	}
	if s.reporter != nil {
		observers = append(observers, s.reporter)
	}

	copts := crawler.OptionsFromConfig(&s.config.Crawl)
	copts.Observers = observers
	copts.Sleeper = s.sleeper
	copts.Logger = s.logger
	if s.config.Crawl.OwnerOnly {
		copts.OwnerPrefix = feed.OwnerPrefix(s.config.Browser.BaseURL, handle)
	}

	result, runErr := crawler.NewController(s.driver, copts).Collect(ctx, target, opts.Mode)

	if pool != nil {
		pool.stop()
	}
	if cp != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)) {
		// left in progress so the next run has to resume or restart
		log.WithField("checkpoint", s.checkpointMgr.Path()).Info("Crawl interrupted, checkpoint kept for --resume")
	} else {
		s.finishCheckpoint(log, cp)
	}
	if runErr == nil && p.err != nil {
		runErr = errs.Wrap(errs.ErrorTypeStorage, "persist", p.err)
	}

	collected, reason := 0, "error"
	if result != nil {
		collected, reason = len(result.Items), string(result.Reason)
	}
	s.finishReport(collected, reason, runErr)
	logger.LogComponentStop("scraper", reason)

	return result, runErr
}

func (s *Scraper) finishCheckpoint(log logger.Logger, cp *checkpoint.Checkpoint) {
	if cp == nil {
		return
	}
	if err := s.checkpointMgr.Finish(cp); err != nil {
		log.WithError(err).Warn("Failed to close checkpoint")
	}
}

func (s *Scraper) finishReport(collected int, reason string, err error) {
	if s.reporter != nil {
		s.reporter.Finished(collected, reason, err)
	}
}

// prepareCheckpoint loads, creates or discards the handle's ledger
func (s *Scraper) prepareCheckpoint(log logger.Logger, handle string, opts RunOptions) (*checkpoint.Checkpoint, error) {
	m := s.checkpointMgr
	if m == nil {
		return nil, nil
	}

	if opts.ForceRestart && m.Exists() {
		if err := m.BackupCheckpoint(); err != nil {
			log.WithError(err).Warn("Failed to back up checkpoint")
		}
		if err := m.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
	}

	cp, err := m.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	switch {
	case cp == nil:
		if cp, err = m.Create(handle); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint: %w", err)
		}
	case cp.InProgress && !opts.Resume:
		return nil, ErrCheckpointExists
	default:
		log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"total_persisted":  cp.TotalPersisted,
			"total_downloaded": cp.TotalDownloaded,
			"last_run_id":      cp.LastRunID,
		})
	}

	if err := m.Begin(cp); err != nil {
		return nil, fmt.Errorf("failed to update checkpoint: %w", err)
	}
	return cp, nil
}

// openProfile navigates to the handle's profile and waits for the first tiles
func (s *Scraper) openProfile(ctx context.Context, log logger.Logger, handle string) error {
	url := feed.ProfileURL(s.config.Browser.BaseURL, handle)
	log.WithField("url", url).Info("Opening profile")

	if err := s.driver.Navigate(ctx, url); err != nil {
		return errs.Wrap(errs.ErrorTypeDriver, "open profile", err)
	}

	sel := crawler.DefaultSelectors()
	ok, err := s.driver.WaitUntilPresent(ctx, sel.Item, s.config.Browser.ActionTimeout)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeDriver, "open profile", err)
	}
	if !ok {
		return errs.New(errs.ErrorTypeNotFound, "open profile", fmt.Sprintf("no feed items on @%s", handle))
	}
	return nil
}

// readProfile reads the profile header and hands it to sinks that keep it.
// A missing or unstored header does not stop the crawl.
func (s *Scraper) readProfile(ctx context.Context, log logger.Logger, handle string) feed.Profile {
	profile, err := crawler.ReadProfile(ctx, s.driver, crawler.Selectors{}, handle)
	if err != nil {
		log.WithError(err).Debug("Profile header not read")
		return feed.Profile{Handle: handle}
	}

	fields := map[string]interface{}{"name": profile.Name}
	if profile.Posts != nil {
		fields["posts"] = *profile.Posts
	}
	if profile.Followers != nil {
		fields["followers"] = *profile.Followers
	}
	log.InfoWithFields("Profile loaded", fields)

	if pw, ok := s.sink.(storage.ProfileWriter); ok {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err := pw.WriteProfile(wctx, profile); err != nil {
			log.WithError(err).Warn("Failed to store profile")
		}
	}
	return profile
}

// resolveTarget picks the number of items to collect. An explicit target
// wins, then the profile's post count, then FallbackTarget.
func resolveTarget(requested int, profile feed.Profile) int {
	switch {
	case requested != 0:
		return requested
	case profile.Posts != nil:
		return *profile.Posts
	default:
		return FallbackTarget
	}
}

// persister writes each round's new items to the sink and records them in
// the checkpoint. Runs on the round loop.
type persister struct {
	scraper    *Scraper
	handle     string
	checkpoint *checkpoint.Checkpoint
	media      *mediaPool
	log        logger.Logger
	err        error
}

func (p *persister) OnRound(ctx context.Context, r crawler.RoundReport) {
	logger.LogScrapeProgress(p.handle, r.Collected, r.Target)
	if len(r.NewItems) == 0 {
		return
	}

	items := r.NewItems
	if p.checkpoint != nil {
		items = p.scraper.checkpointMgr.Unpersisted(p.checkpoint, items)
	}

	if len(items) > 0 {
		// finish the write even if the crawl is being cancelled
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		err := p.scraper.sink.Write(wctx, p.handle, items)
		cancel()
		if err != nil {
			p.log.WithError(err).WithField("round", r.Round).Error("Failed to persist round")
			if p.err == nil {
				p.err = err
			}
			return
		}
	}

	if p.checkpoint != nil {
		if err := p.scraper.checkpointMgr.RecordItems(p.checkpoint, r.RunID, r.Round, r.NewItems); err != nil {
			p.log.WithError(err).Warn("Failed to update checkpoint")
		}
	}

	if p.media != nil {
		for _, it := range r.NewItems {
			p.media.submit(it)
		}
	}
}

// mediaPool couples the download worker pool with its result consumer
type mediaPool struct {
	pool       *downloader.WorkerPool
	handle     string
	checkpoint *checkpoint.Checkpoint
	manager    *checkpoint.Manager
	reporter   ProgressReporter
	log        logger.Logger
	wg         sync.WaitGroup
}

// MediaDir is where media of handle is downloaded
func MediaDir(outputDir, handle string) string {
	return filepath.Join(outputDir, handle+"_media")
}

func (s *Scraper) startMediaPool(ctx context.Context, handle string, cp *checkpoint.Checkpoint) (*mediaPool, error) {
	store, err := storage.NewMediaStore(MediaDir(s.config.Output.Directory, handle))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "media store", err)
	}

	fetcher := s.fetcher
	if fetcher == nil {
		fetcher = downloader.NewHTTPFetcher(s.config.Download.DownloadTimeout, s.config.Download.RetryAttempts, s.config.Browser.UserAgent, s.logger)
	}

	mp := &mediaPool{
		pool:       downloader.NewWorkerPool(ctx, s.config.Download.ConcurrentDownloads, fetcher, store, s.limiter, s.logger),
		handle:     handle,
		checkpoint: cp,
		manager:    s.checkpointMgr,
		reporter:   s.reporter,
		log:        s.logger,
	}
	mp.pool.Start()

	mp.wg.Add(1)
	go func() {
		defer mp.wg.Done()
		mp.processResults()
	}()
	return mp, nil
}

func (mp *mediaPool) submit(it feed.Item) {
	job, ok := downloader.JobFor(mp.handle, it)
	if !ok {
		return
	}
	if mp.checkpoint != nil && mp.manager.IsDownloaded(mp.checkpoint, job.MediaID) {
		return
	}
	if err := mp.pool.Submit(job); err != nil {
		mp.log.WithError(err).WithField("media_id", job.MediaID).Warn("Failed to submit download job")
	}
}

// stop waits for queued downloads and the result consumer
func (mp *mediaPool) stop() {
	mp.pool.Stop()
	mp.wg.Wait()
}

func (mp *mediaPool) processResults() {
	for result := range mp.pool.Results() {
		logger.LogDownload(mp.handle, result.Job.Key, result.Success, result.Error)

		if result.Success && !result.Skipped {
			meta := metadata.FromItem(mp.handle, result.Job.Item, result.Path, int64(result.Size))
			if err := meta.Save(result.Path); err != nil {
				mp.log.WithError(err).WithField("media_id", result.Job.MediaID).Warn("Failed to write media metadata")
			}
			if mp.checkpoint != nil {
				if err := mp.manager.RecordDownload(mp.checkpoint, result.Job.MediaID, filepath.Base(result.Path)); err != nil {
					mp.log.WithError(err).Warn("Failed to record download in checkpoint")
				}
			}
		}
		if mp.reporter != nil {
			mp.reporter.DownloadFinished(result.Job.MediaID, result.Skipped, result.Error)
		}
	}
}
