package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"igcrawler/pkg/config"
	"igcrawler/pkg/driver"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/retry"
)

var (
	// ErrNoProgress is returned when a session ends without collecting anything
	ErrNoProgress = errs.New(errs.ErrorTypeNoProgress, "collect", "no items collected before the wait budget ran out")
	// ErrInvalidTarget is returned for a negative target
	ErrInvalidTarget = errs.New(errs.ErrorTypeConfig, "collect", "target must not be negative")
)

// StopReason says why Collect returned
type StopReason string

const (
	StopTargetReached   StopReason = "target_reached"
	StopBudgetExhausted StopReason = "budget_exhausted"
	StopFeedExhausted   StopReason = "feed_exhausted"
	StopCancelled       StopReason = "cancelled"
)

// Result is the outcome of one enumeration session. Complete is false when
// fewer than the requested number of items were found.
type Result struct {
	Items       []feed.Item
	Complete    bool
	Reason      StopReason
	Rounds      int
	ElapsedWait time.Duration
	RunID       string
}

// RoundReport describes one finished round
type RoundReport struct {
	RunID     string
	Round     int
	NewItems  []feed.Item
	Collected int
	Target    int
	Interval  time.Duration
	Elapsed   time.Duration
}

// RoundObserver is notified after every round. Observers run on the round
// loop and must not call back into the controller.
type RoundObserver interface {
	OnRound(ctx context.Context, report RoundReport)
}

// RoundObserverFunc adapts a function to RoundObserver
type RoundObserverFunc func(ctx context.Context, report RoundReport)

func (f RoundObserverFunc) OnRound(ctx context.Context, report RoundReport) { f(ctx, report) }

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Options tune a Controller. Zero values fall back to the crawl defaults.
type Options struct {
	Selectors      Selectors
	BackoffUnit    time.Duration
	Budget         time.Duration
	RecoveryOffset int
	// OwnerPrefix, when set, drops every key that does not start with it
	OwnerPrefix      string
	DetailRetryLimit int
	DetailPoll       time.Duration
	DetailWait       time.Duration
	Sleeper          Sleeper
	Observers        []RoundObserver
	Logger           logger.Logger
}

// OptionsFromConfig maps the crawl section of the configuration onto Options
func OptionsFromConfig(cfg *config.CrawlConfig) Options {
	return Options{
		BackoffUnit:      cfg.BackoffUnit,
		Budget:           cfg.BudgetDuration(),
		RecoveryOffset:   cfg.RecoveryOffset,
		DetailRetryLimit: cfg.DetailRetryLimit,
		DetailPoll:       cfg.DetailPoll,
		DetailWait:       cfg.DetailWait,
	}
}

// Controller runs the pagination loop: discover tiles, extract the new ones,
// and back off while the feed is not producing anything.
type Controller struct {
	driver         driver.PageDriver
	sel            Selectors
	extractor      *Extractor
	scheduler      *retry.Scheduler
	budget         time.Duration
	recoveryOffset int
	ownerPrefix    string
	sleep          Sleeper
	observers      []RoundObserver
	logger         logger.Logger
}

// NewController creates a controller over d
func NewController(d driver.PageDriver, opts Options) *Controller {
	defaults := config.DefaultConfig().Crawl
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = defaults.BackoffUnit
	}
	if opts.Budget <= 0 {
		opts.Budget = time.Duration(defaults.TimeoutBudget) * opts.BackoffUnit
	}
	if opts.RecoveryOffset <= 0 {
		opts.RecoveryOffset = defaults.RecoveryOffset
	}
	if opts.DetailRetryLimit <= 0 {
		opts.DetailRetryLimit = defaults.DetailRetryLimit
	}
	if opts.DetailWait <= 0 {
		opts.DetailWait = defaults.DetailWait
	}
	if opts.Sleeper == nil {
		opts.Sleeper = retry.Wait
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	sel := opts.Selectors.merge(DefaultSelectors())

	gate := NewGate(d, sel.DetailKey, opts.DetailRetryLimit, opts.DetailPoll)
	return &Controller{
		driver:         d,
		sel:            sel,
		extractor:      NewExtractor(d, sel, gate, opts.DetailWait, opts.Logger),
		scheduler:      retry.NewScheduler(opts.BackoffUnit),
		budget:         opts.Budget,
		recoveryOffset: opts.RecoveryOffset,
		ownerPrefix:    opts.OwnerPrefix,
		sleep:          opts.Sleeper,
		observers:      opts.Observers,
		logger:         opts.Logger,
	}
}

// Collect enumerates up to target items from the feed currently loaded in the
// driver. Running out of wait budget returns the partial result without an
// error unless nothing was collected, which yields ErrNoProgress. A cancelled
// ctx returns the partial result together with ctx.Err().
func (c *Controller) Collect(ctx context.Context, target int, mode feed.Mode) (*Result, error) {
	if target < 0 {
		return nil, ErrInvalidTarget
	}
	s := newSession(uuid.NewString(), target, mode, c.budget, c.scheduler.Reset())
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": s.runID,
		"target": target,
		"mode":   mode.String(),
	})
	if target == 0 {
		return s.result(StopTargetReached), nil
	}

	log.WithField("budget", c.budget.String()).Info("Collection started")

	for {
		if err := ctx.Err(); err != nil {
			return c.finish(log, s, StopCancelled, err)
		}

		s.rounds++
		before := len(s.items)
		c.round(ctx, log, s)
		added := s.items[before:]

		c.report(ctx, log, s, added)

		if s.done() {
			return c.finish(log, s, StopTargetReached, nil)
		}
		if err := ctx.Err(); err != nil {
			return c.finish(log, s, StopCancelled, err)
		}

		if len(added) > 0 {
			s.interval = c.scheduler.Reset()
			if err := c.driver.ScrollForward(ctx); err != nil {
				log.WithError(err).Debug("Scroll forward failed")
			}
			continue
		}

		if s.elapsed >= s.budget {
			return c.finish(log, s, StopBudgetExhausted, nil)
		}
		if s.elapsed > s.budget/2 && !c.loading(ctx, log) {
			return c.finish(log, s, StopFeedExhausted, nil)
		}

		wait := s.interval
		if r := s.remaining(); wait > r {
			wait = r
		}
		if err := c.sleep(ctx, wait); err != nil {
			return c.finish(log, s, StopCancelled, err)
		}
		s.elapsed += wait
		s.interval = c.scheduler.NextInterval(s.interval)
		c.recover(ctx, log)
	}
}

// round processes every tile currently on the page and stops early once the
// target is met
func (c *Controller) round(ctx context.Context, log logger.Logger, s *session) {
	tiles, err := c.driver.Discover(ctx, c.sel.Item)
	if err != nil {
		log.WithError(err).WithField("round", s.rounds).Warn("Discovery failed")
		return
	}

	for _, tile := range tiles {
		if s.done() || ctx.Err() != nil {
			return
		}

		key, err := c.extractor.Key(ctx, tile)
		if err != nil || key == "" {
			if err != nil {
				log.WithError(err).Debug("Tile has no readable key")
			}
			continue
		}
		if c.ownerPrefix != "" && !strings.HasPrefix(key, c.ownerPrefix) {
			log.WithField("key", key).Debug("Skipping item outside owner profile")
			continue
		}
		if s.has(key) {
			continue
		}

		item, outcome := c.extractor.Extract(ctx, tile, key, s.mode)
		if outcome != OutcomeOK {
			logger.LogItemSkipped(log, key, outcome.String(), nil)
		}
		s.accept(item)
	}
}

// loading reports whether the page still shows its loading indicator. A failed
// lookup counts as still loading so only the budget ends the run.
func (c *Controller) loading(ctx context.Context, log logger.Logger) bool {
	found, err := c.driver.Discover(ctx, c.sel.Loading)
	if err != nil {
		log.WithError(err).Debug("Loading indicator lookup failed")
		return true
	}
	return len(found) > 0
}

// recover nudges a stalled feed by scrolling back and forward again
func (c *Controller) recover(ctx context.Context, log logger.Logger) {
	if err := c.driver.ScrollBackward(ctx, c.recoveryOffset); err != nil {
		log.WithError(err).Debug("Scroll backward failed")
	}
	if err := c.driver.ScrollForward(ctx); err != nil {
		log.WithError(err).Debug("Scroll forward failed")
	}
}

func (c *Controller) report(ctx context.Context, log logger.Logger, s *session, added []feed.Item) {
	logger.LogRound(log, s.rounds, len(added), len(s.items), s.target, s.elapsed, s.interval)
	if len(c.observers) == 0 {
		return
	}
	report := RoundReport{
		RunID:     s.runID,
		Round:     s.rounds,
		NewItems:  append([]feed.Item(nil), added...),
		Collected: len(s.items),
		Target:    s.target,
		Interval:  s.interval,
		Elapsed:   s.elapsed,
	}
	for _, o := range c.observers {
		o.OnRound(ctx, report)
	}
}

func (c *Controller) finish(log logger.Logger, s *session, reason StopReason, err error) (*Result, error) {
	res := s.result(reason)
	log.InfoWithFields("Collection finished", map[string]interface{}{
		"reason":       string(reason),
		"collected":    len(res.Items),
		"rounds":       res.Rounds,
		"elapsed_wait": res.ElapsedWait.String(),
	})
	if err != nil {
		return res, err
	}
	if len(res.Items) == 0 && reason != StopTargetReached {
		return res, ErrNoProgress
	}
	return res, nil
}
