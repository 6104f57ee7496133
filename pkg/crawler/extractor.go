package crawler

import (
	"context"
	"strings"
	"time"

	"igcrawler/pkg/driver"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
)

// Outcome is the result of extracting a single item
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeDetailUnavailable means the detail view never rendered
	OutcomeDetailUnavailable
	// OutcomeStuck means the detail view kept showing some other item
	OutcomeStuck
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDetailUnavailable:
		return "detail_unavailable"
	case OutcomeStuck:
		return "stuck"
	default:
		return "ok"
	}
}

// Extractor turns a discovered tile into a feed.Item
type Extractor struct {
	driver     driver.PageDriver
	sel        Selectors
	gate       *Gate
	detailWait time.Duration
	logger     logger.Logger
}

// NewExtractor creates an extractor. gate may be nil, in which case detail
// views are read without confirming they advanced.
func NewExtractor(d driver.PageDriver, sel Selectors, gate *Gate, detailWait time.Duration, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{driver: d, sel: sel, gate: gate, detailWait: detailWait, logger: log}
}

// Key reads the canonical link of a tile
func (e *Extractor) Key(ctx context.Context, h driver.Handle) (string, error) {
	href, err := e.driver.ReadAttribute(ctx, h, e.sel.Link, "href")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(href), nil
}

// Extract builds the item for a tile whose key is already known. In FullDetail
// mode a failed detail read still returns the summary fields, flagged unavailable.
func (e *Extractor) Extract(ctx context.Context, h driver.Handle, key string, mode feed.Mode) (feed.Item, Outcome) {
	item := e.summary(ctx, h, key)
	if mode != feed.FullDetail {
		return item, OutcomeOK
	}
	outcome := e.detail(ctx, h, &item)
	if outcome != OutcomeOK {
		item.Detail = feed.DetailUnavailable
	}
	return item, outcome
}

func (e *Extractor) summary(ctx context.Context, h driver.Handle, key string) feed.Item {
	item := feed.Item{Key: key, MediaURL: feed.Unavailable, Detail: feed.DetailSummary}
	if src, err := e.driver.ReadAttribute(ctx, h, e.sel.Image, "src"); err == nil && strings.TrimSpace(src) != "" {
		item.MediaURL = strings.TrimSpace(src)
	}
	return item
}

// detail opens the item's dedicated view, reads it, and always closes it again
func (e *Extractor) detail(ctx context.Context, h driver.Handle, item *feed.Item) Outcome {
	log := e.logger.WithField("key", item.Key)

	if err := e.driver.OpenDetailView(ctx, h); err != nil {
		log.WithError(err).Debug("Detail view did not open")
		return OutcomeDetailUnavailable
	}
	defer func() {
		if err := e.driver.CloseDetailView(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to close detail view")
		}
	}()

	ready, err := e.driver.WaitUntilPresent(ctx, e.sel.DetailReady, e.detailWait)
	if err != nil || !ready {
		if err != nil {
			log = log.WithError(err)
		}
		log.Debug("Detail view never rendered")
		return OutcomeDetailUnavailable
	}

	if e.gate != nil {
		state := e.gate.Check(ctx, item.Key)
		attempts := e.gate.Attempts()
		e.gate.Reset()
		if state == GateStuck {
			log.WithField("attempts", attempts).Debug("Detail view did not advance")
			return OutcomeStuck
		}
	}

	e.readDetail(ctx, item)
	item.Detail = feed.DetailComplete
	return OutcomeOK
}

func (e *Extractor) readDetail(ctx context.Context, item *feed.Item) {
	if ts, ok := e.readTime(ctx, nil, e.sel.DetailTime); ok {
		item.Timestamp = &ts
	}
	if src := e.text(e.driver.ReadAttribute(ctx, nil, e.sel.DetailImage, "src")); src != "" {
		item.MediaURL = src
	}
	if n, ok := feed.ParseCount(e.text(e.driver.ReadText(ctx, nil, e.sel.Likes))); ok {
		item.LikeCount = &n
	}

	var collabs []feed.Collaborator
	collabs = feed.MergeCollaborators(collabs, feed.CollabTag, e.texts(ctx, nil, e.sel.HeaderCollabs)...)

	if captions, err := e.driver.Discover(ctx, e.sel.Caption); err == nil && len(captions) > 0 {
		item.Caption = e.text(e.driver.ReadText(ctx, captions[0], ""))

		var mentions []string
		for _, anchor := range e.texts(ctx, captions[0], e.sel.CaptionMentions) {
			if strings.HasPrefix(anchor, "@") {
				mentions = append(mentions, anchor)
			}
		}
		mentions = append(mentions, feed.ParseMentions(item.Caption)...)
		collabs = feed.MergeCollaborators(collabs, feed.CollabMention, mentions...)
	}
	item.Collaborators = collabs

	item.Comments = e.comments(ctx)
	// only the total shown on the page counts; loaded comments are a sample
	if n, ok := feed.FirstCount(e.text(e.driver.ReadText(ctx, nil, e.sel.CommentTotal))); ok {
		item.CommentCount = &n
	}
}

func (e *Extractor) comments(ctx context.Context) []feed.Comment {
	nodes, err := e.driver.Discover(ctx, e.sel.Comment)
	if err != nil {
		return nil
	}
	var out []feed.Comment
	for _, n := range nodes {
		c := feed.Comment{
			Author: feed.NormalizeHandle(e.text(e.driver.ReadText(ctx, n, e.sel.CommentAuthor))),
			Text:   e.text(e.driver.ReadText(ctx, n, e.sel.CommentText)),
		}
		if c.Author == "" && c.Text == "" {
			continue
		}
		c.Mentions = feed.ParseMentions(c.Text)
		if ts, ok := e.readTime(ctx, n, e.sel.CommentTime); ok {
			c.Timestamp = &ts
		}
		out = append(out, c)
	}
	return out
}

// texts reads the text of every match of selector under h (the document when nil)
func (e *Extractor) texts(ctx context.Context, h driver.Handle, selector string) []string {
	var nodes []driver.Handle
	var err error
	if h == nil {
		nodes, err = e.driver.Discover(ctx, selector)
	} else {
		nodes, err = e.driver.DiscoverWithin(ctx, h, selector)
	}
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := e.text(e.driver.ReadText(ctx, n, "")); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (e *Extractor) readTime(ctx context.Context, h driver.Handle, selector string) (time.Time, bool) {
	raw := e.text(e.driver.ReadAttribute(ctx, h, selector, "datetime"))
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// text drops the error of an optional read; missing detail fields are not fatal
func (e *Extractor) text(s string, err error) string {
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
