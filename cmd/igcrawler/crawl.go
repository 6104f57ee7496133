package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igcrawler/pkg/auth"
	"igcrawler/pkg/checkpoint"
	"igcrawler/pkg/config"
	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/scraper"
	"igcrawler/pkg/ui"
	"igcrawler/pkg/ui/tui"
)

var (
	// Crawl command flags
	count         int
	detail        bool
	timeoutBudget int
	backoffUnit   time.Duration
	outputDir     string
	databaseURL   string
	downloadMedia bool
	concurrent    int
	rateLimit     int
	headless      bool
	accountName   string
	resumeCrawl   bool
	forceRestart  bool
	useTUI        bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <handle>",
	Short: "Collect posts from a profile feed",
	Long: `Open a profile in an automated browser and scroll its feed until the
requested number of posts is collected, the feed runs out, or the wait budget
is spent.

Signing in uses, in order:
  - the account named with --account
  - IGCRAWLER_USERNAME with IGCRAWLER_PASSWORD or IGCRAWLER_SESSION_ID
  - the most recently stored account (see 'igcrawler auth login')

Every round's new posts are written immediately, so an interrupted crawl
keeps what it found. Posts persisted by an earlier run of the same handle
are not written again.`,
	Example: `  # Collect the 50 newest posts
  igcrawler crawl natgeo -n 50

  # Include captions, collaborators and comments
  igcrawler crawl natgeo -n 20 --detail

  # Also store into Postgres and download images
  igcrawler crawl natgeo --db postgres://localhost/igcrawler --download-media

  # Continue an interrupted crawl
  igcrawler crawl natgeo --resume

  # Follow progress in the terminal dashboard
  igcrawler crawl natgeo --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	addCrawlFlags(crawlCmd)
	// a bare handle on the root command crawls it
	addCrawlFlags(rootCmd)
	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		if len(args) > 1 {
			return fmt.Errorf("unknown command %q for %q", args[0], cmd.Name())
		}
		return runCrawl(cmd, args)
	}
}

func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&count, "count", "n", 0, "number of posts to collect (default from config, 0 for the profile's post count)")
	f.BoolVar(&detail, "detail", false, "open every post for caption, collaborators and comments")
	f.IntVar(&timeoutBudget, "timeout-budget", 0, "total wait budget in backoff units")
	f.DurationVar(&backoffUnit, "backoff-unit", 0, "first backoff interval")
	f.StringVarP(&outputDir, "output", "o", "", "output directory")
	f.StringVar(&databaseURL, "db", "", "Postgres connection string")
	f.BoolVar(&downloadMedia, "download-media", false, "download each post's image")
	f.IntVar(&concurrent, "concurrent", 0, "number of concurrent media downloads")
	f.IntVar(&rateLimit, "rate-limit", 0, "browser actions per minute")
	f.BoolVar(&headless, "headless", true, "run the browser without a window")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	f.BoolVar(&resumeCrawl, "resume", false, "continue an interrupted crawl")
	f.BoolVar(&forceRestart, "force-restart", false, "discard the checkpoint and start fresh")
	f.BoolVar(&useTUI, "tui", false, "show the interactive dashboard")
}

// crawlFlags collects the flags the user actually set
func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, v interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = v
		}
	}
	set("count", count)
	set("detail", detail)
	set("timeout-budget", timeoutBudget)
	set("backoff-unit", backoffUnit)
	set("output", outputDir)
	set("db", databaseURL)
	set("download-media", downloadMedia)
	set("concurrent", concurrent)
	set("rate-limit", rateLimit)
	set("headless", headless)
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	handle := feed.NormalizeHandle(args[0])
	if handle == "" {
		return errors.New("handle is required")
	}
	if resumeCrawl && forceRestart {
		return errors.New("--resume and --force-restart cannot be used together")
	}

	cfg, err := config.Load(configFile, crawlFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return err
	}
	if useTUI && cfg.Logging.File == "" {
		// console logs would draw over the dashboard
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger().WithField("handle", handle)
	log.WithField("version", version).Info("igcrawler starting")

	account, err := resolveAccount()
	if err != nil {
		ui.PrintError("No credentials found", err)
		fmt.Fprintln(ui.Output, "\nRun 'igcrawler auth login' to store an account, or see 'igcrawler auth guide'.")
		return err
	}
	if account.UserAgent != "" {
		cfg.Browser.UserAgent = account.UserAgent
	}
	ui.PrintInfo("Target Profile", "@"+handle)
	ui.PrintInfo("Using account", account.Username)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mode := feed.Summary
	if cfg.Crawl.Detail {
		mode = feed.FullDetail
	}

	var reporter scraper.ProgressReporter
	var dash *tui.TUI
	if useTUI {
		dash = tui.NewTUI(tui.Options{
			Handle: handle,
			Target: cfg.Crawl.Target,
			Mode:   mode.String(),
			Budget: cfg.Crawl.BudgetDuration(),
			OnQuit: cancel,
		})
		reporter = dash
	} else {
		reporter = ui.NewProgressDisplay(ui.Output, handle, cfg.Crawl.Target, cfg.Crawl.BudgetDuration(), cfg.Logging.Level == "debug")
	}

	run := func() (*crawler.Result, error) {
		return crawl(ctx, cfg, handle, mode, account, reporter, log)
	}

	var result *crawler.Result
	if dash != nil {
		result, err = runWithDashboard(dash, run, log)
	} else {
		ui.PrintHighlight("[OPENING BROWSER]")
		result, err = run()
	}

	if notifications {
		collected, reason := 0, "error"
		if result != nil {
			collected, reason = len(result.Items), string(result.Reason)
		}
		ui.NewNotifier().CrawlFinished(handle, collected, reason, err)
	}

	if errors.Is(err, scraper.ErrCheckpointExists) {
		ui.PrintWarning("An earlier crawl did not finish", "@"+handle)
		return err
	}
	if err != nil {
		log.WithError(err).Error("Crawl failed")
		return err
	}
	log.WithField("collected", len(result.Items)).Info("Crawl completed")
	return nil
}

// runWithDashboard runs the crawl while the dashboard owns the terminal
func runWithDashboard(dash *tui.TUI, run func() (*crawler.Result, error), log logger.Logger) (*crawler.Result, error) {
	type outcome struct {
		result *crawler.Result
		err    error
	}
	crawlDone := make(chan outcome, 1)
	go func() {
		result, err := run()
		crawlDone <- outcome{result, err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- dash.Start()
	}()

	select {
	case o := <-crawlDone:
		if o.result == nil {
			dash.Finished(0, "error", o.err)
		}
		// leave the final state on screen until the user quits
		if err := <-tuiDone; err != nil {
			log.WithError(err).Warn("Dashboard failed")
		}
		return o.result, o.err
	case err := <-tuiDone:
		if err != nil {
			log.WithError(err).Warn("Dashboard failed")
		}
		// quitting cancels the crawl; wait for it to wind down
		o := <-crawlDone
		return o.result, o.err
	}
}

// crawl launches the browser, opens the sinks and runs one crawl
func crawl(ctx context.Context, cfg *config.Config, handle string, mode feed.Mode, account *auth.Account, reporter scraper.ProgressReporter, log logger.Logger) (*crawler.Result, error) {
	cpMgr, err := checkpoint.NewManager(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}

	b, err := scraper.Launch(ctx, cfg, account, log)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	sinks, err := scraper.OpenSinks(ctx, cfg, handle, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("Failed to close sinks")
		}
	}()

	s := scraper.New(cfg, b,
		scraper.WithSink(sinks),
		scraper.WithCheckpoint(cpMgr),
		scraper.WithReporter(reporter),
		scraper.WithLogger(log),
	)
	return s.Run(ctx, handle, scraper.RunOptions{
		Target:       cfg.Crawl.Target,
		Mode:         mode,
		Resume:       resumeCrawl,
		ForceRestart: forceRestart,
	})
}

// resolveAccount picks the account to sign in with
func resolveAccount() (*auth.Account, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err != nil {
			return nil, fmt.Errorf("account %q not found: %w", accountName, err)
		}
		return account, nil
	}
	return manager.RetrieveDefault()
}
