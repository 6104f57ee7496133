package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
)

// ProgressDisplay prints one status line per crawl round and a summary at the
// end. It is safe to feed from the round loop and download workers at once.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	handle     string
	target     int
	budget     time.Duration
	collected  int
	round      int
	interval   time.Duration
	elapsed    time.Duration
	downloaded int
	skipped    int
	errors     int
	startTime  time.Time
	isDebug    bool
}

// NewProgressDisplay creates a display for a crawl of handle. budget is the
// crawl's waiting budget and only feeds the progress bar.
func NewProgressDisplay(out io.Writer, handle string, target int, budget time.Duration, debug bool) *ProgressDisplay {
	if out == nil {
		out = Output
	}
	return &ProgressDisplay{
		out:       out,
		handle:    handle,
		target:    target,
		budget:    budget,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// ProfileLoaded prints the profile header and adopts the resolved target
func (p *ProgressDisplay) ProfileLoaded(profile feed.Profile, target int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.target = target
	name := profile.Name
	if name == "" {
		name = "@" + p.handle
	}
	line := fmt.Sprintf("%s %s", Cyan("◉"), name)
	if profile.Posts != nil {
		line += fmt.Sprintf(" • %d posts", *profile.Posts)
	}
	if profile.Followers != nil {
		line += fmt.Sprintf(" • %d followers", *profile.Followers)
	}
	fmt.Fprintf(p.out, "%s\n%s collecting %d items\n", line, Dim("•"), target)
}

// OnRound implements crawler.RoundObserver
func (p *ProgressDisplay) OnRound(_ context.Context, r crawler.RoundReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.round = r.Round
	p.collected = r.Collected
	p.interval = r.Interval
	p.elapsed = r.Elapsed

	if p.isDebug {
		for _, it := range r.NewItems {
			fmt.Fprintf(p.out, "\n%s %s", Green("+"), it.Key)
		}
		if len(r.NewItems) == 0 {
			fmt.Fprintf(p.out, "\n%s round %d: nothing new, next wait %s", Magenta("→"), r.Round, formatDuration(r.Interval))
		}
		return
	}
	p.printProgress()
}

// DownloadFinished records the outcome of one media download
func (p *ProgressDisplay) DownloadFinished(mediaID string, skipped bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case err != nil:
		p.errors++
		if p.isDebug {
			fmt.Fprintf(p.out, "\n%s %s: %v", Red("✗"), mediaID, err)
		}
	case skipped:
		p.skipped++
	default:
		p.downloaded++
	}
}

// Finished prints the crawl summary
func (p *ProgressDisplay) Finished(collected int, reason string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	mark := Green("✓")
	if err != nil {
		mark = Red("✗")
	}
	fmt.Fprintf(p.out, "\n\n%s Collected %d/%d items from @%s (%s)\n", mark, collected, p.target, p.handle, reason)
	fmt.Fprintf(p.out, "  %s %d rounds in %s, %s spent waiting\n", Dim("•"), p.round, formatDuration(elapsed), formatDuration(p.elapsed))
	if p.downloaded+p.skipped+p.errors > 0 {
		fmt.Fprintf(p.out, "  %s %d media downloaded, %d already present\n", Dim("•"), p.downloaded, p.skipped)
	}
	if p.errors > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), p.errors)
	}
	if err != nil {
		fmt.Fprintf(p.out, "  %s %v\n", Dim("•"), err)
	}
}

func (p *ProgressDisplay) printProgress() {
	line := fmt.Sprintf("%s [%s] %d/%d • round %d • waited %s",
		Cyan("@"+p.handle),
		p.bar(20),
		p.collected,
		p.target,
		p.round,
		formatDuration(p.elapsed),
	)
	if p.elapsed > 0 {
		line += fmt.Sprintf(" • next wait %s", formatDuration(p.interval))
	}
	if p.downloaded > 0 {
		line += fmt.Sprintf(" • %d saved", p.downloaded)
	}
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func (p *ProgressDisplay) bar(width int) string {
	filled := 0
	if p.target > 0 {
		filled = p.collected * width / p.target
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
