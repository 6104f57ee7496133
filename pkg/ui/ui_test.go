package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/feed"
)

type recordingSender struct {
	titles, messages []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	withoutColor(t)
	buf := captureOutput(t)

	PrintInfo("Handle", "natgeo")
	PrintError("Crawl failed", errors.New("boom"))
	PrintWarning("Slow feed")

	out := buf.String()
	assert.Contains(t, out, "Handle")
	assert.Contains(t, out, "Crawl failed: boom")
	assert.Contains(t, out, "Slow feed")
}

func TestProgressDisplayRounds(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "natgeo", 10, time.Minute, false)
	var _ crawler.RoundObserver = p

	p.OnRound(context.Background(), crawler.RoundReport{Round: 1, Collected: 5, Target: 10})
	assert.Contains(t, buf.String(), "5/10")
	assert.Contains(t, buf.String(), "━━━━━━━━━━──────────")

	p.OnRound(context.Background(), crawler.RoundReport{Round: 2, Collected: 5, Target: 10, Interval: 2 * time.Second, Elapsed: time.Second})
	assert.Contains(t, buf.String(), "next wait 2s")

	p.DownloadFinished("a", false, nil)
	p.DownloadFinished("b", true, nil)
	p.DownloadFinished("c", false, errors.New("404"))

	buf.Reset()
	p.Finished(10, "target_reached", nil)
	out := buf.String()
	assert.Contains(t, out, "Collected 10/10 items from @natgeo (target_reached)")
	assert.Contains(t, out, "1 media downloaded, 1 already present")
	assert.Contains(t, out, "1 downloads failed")
}

func withoutColor(t *testing.T) {
	t.Helper()
	prev := colorEnabled
	SetColor(false)
	t.Cleanup(func() { SetColor(prev) })
}

func TestProgressDisplayDebug(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "natgeo", 2, time.Minute, true)

	p.OnRound(context.Background(), crawler.RoundReport{Round: 1, NewItems: []feed.Item{{Key: "https://www.instagram.com/natgeo/p/a/"}}, Collected: 1})
	p.OnRound(context.Background(), crawler.RoundReport{Round: 2, Collected: 1, Interval: 4 * time.Second})

	out := buf.String()
	assert.Contains(t, out, "+ https://www.instagram.com/natgeo/p/a/")
	assert.Contains(t, out, "round 2: nothing new, next wait 4s")
}

func TestColorToggle(t *testing.T) {
	withoutColor(t)
	assert.Equal(t, "ok", Green("ok"))

	SetColor(true)
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))
}

func TestProgressDisplayProfileLoaded(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "natgeo", 0, time.Minute, false)

	posts, followers := 412, 2500000
	p.ProfileLoaded(feed.Profile{Handle: "natgeo", Name: "National Geographic", Posts: &posts, Followers: &followers}, 412)
	out := buf.String()
	assert.Contains(t, out, "National Geographic • 412 posts • 2500000 followers")
	assert.Contains(t, out, "collecting 412 items")

	buf.Reset()
	p.Finished(3, "budget_exhausted", nil)
	assert.Contains(t, buf.String(), "Collected 3/412 items from @natgeo")

	buf.Reset()
	NewProgressDisplay(&buf, "nasa", 0, time.Minute, false).ProfileLoaded(feed.Profile{Handle: "nasa"}, 12)
	assert.Contains(t, buf.String(), "@nasa")
	assert.Contains(t, buf.String(), "collecting 12 items")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m5s", formatDuration(185*time.Second))
	assert.Equal(t, "2h1m", formatDuration(121*time.Minute))
}

func TestNotifierCrawlFinished(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)

	n.CrawlFinished("natgeo", 12, "feed_exhausted", nil)
	n.CrawlFinished("natgeo", 0, "budget_exhausted", errors.New("no progress"))

	assert.Equal(t, []string{"@natgeo: 12 items (feed_exhausted)", "@natgeo stopped after 0 items: no progress"}, sender.messages)
	assert.Contains(t, buf.String(), "no progress")

	// a nil sender only prints
	NewNotifierWithSender(nil).CrawlFinished("natgeo", 1, "target_reached", nil)
}
