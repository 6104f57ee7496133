package crawler

import (
	"context"
	"fmt"
	"time"

	"igcrawler/pkg/driver/drivertest"
	"igcrawler/pkg/logger"
)

var testSel = DefaultSelectors()

// fakeClock records waits instead of sleeping
type fakeClock struct {
	waits []time.Duration
	total time.Duration
}

func (f *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.waits = append(f.waits, d)
	f.total += d
	return nil
}

func postKey(i int) string {
	return fmt.Sprintf("https://www.instagram.com/natgeo/p/post%02d/", i)
}

func newTile(key string) *drivertest.Node {
	return drivertest.NewNode("", nil).
		Set(testSel.Link, "href", key).
		Set(testSel.Image, "src", key+"thumb.jpg")
}

// tiles builds n tiles numbered from 1
func tiles(n int) []*drivertest.Node {
	out := make([]*drivertest.Node, n)
	for i := range out {
		out[i] = newTile(postKey(i + 1))
	}
	return out
}

func detailView(key string, ts time.Time) *drivertest.Node {
	caption := drivertest.NewNode("Sunrise with @Bob and @carol.", nil).
		Add(testSel.CaptionMentions, drivertest.NewNode("@bob", nil))
	comment := drivertest.NewNode("", nil).
		Add(testSel.CommentAuthor, drivertest.NewNode("Dave", nil)).
		Add(testSel.CommentText, drivertest.NewNode("great shot @alice", nil)).
		Set(testSel.CommentTime, "datetime", ts.Add(time.Hour).Format(time.RFC3339))

	return drivertest.NewNode("", nil).
		Set(testSel.DetailImage, "src", key+"full.jpg").
		Set(testSel.DetailKey, "href", key).
		Set(testSel.DetailTime, "datetime", ts.Format("2006-01-02T15:04:05.000Z")).
		Add(testSel.Likes, drivertest.NewNode("1,204", nil)).
		Add(testSel.HeaderCollabs, drivertest.NewNode("Alice", nil), drivertest.NewNode("natgeo", nil)).
		Add(testSel.Caption, caption).
		Add(testSel.Comment, comment).
		Add(testSel.CommentTotal, drivertest.NewNode("View all 48 comments", nil))
}

func day(i int) time.Time {
	return time.Date(2025, 2, i, 9, 57, 16, 0, time.UTC)
}

func newTestController(d *drivertest.Driver, clock *fakeClock, mutate ...func(*Options)) *Controller {
	opts := Options{
		BackoffUnit: time.Second,
		Budget:      600 * time.Second,
		Sleeper:     clock.sleep,
		Logger:      logger.NewNopLogger(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewController(d, opts)
}

func keys(res *Result) []string {
	out := make([]string, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.Key
	}
	return out
}
