// Package browser implements driver.PageDriver on top of a Chrome instance
// controlled through chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"igcrawler/pkg/config"
	"igcrawler/pkg/driver"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/ratelimit"
)

const defaultCloseSelector = "div.x6s0dn4 svg[aria-label='Close']"

// Browser drives one Chrome tab. Handles it returns are *cdp.Node values.
// It is not safe for concurrent use.
type Browser struct {
	cfg           config.BrowserConfig
	closeSelector string
	limiter       ratelimit.Limiter
	logger        logger.Logger

	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

var _ driver.PageDriver = (*Browser)(nil)

// New starts Chrome with the given settings. Navigation, scrolling and detail
// view clicks wait on limiter; element reads do not.
func New(ctx context.Context, cfg config.BrowserConfig, limiter ratelimit.Limiter, log logger.Logger) (*Browser, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(0, 1)
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 1600),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	// first Run launches the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errs.Wrap(errs.ErrorTypeDriver, "start browser", err)
	}

	log.WithFields(map[string]interface{}{
		"headless": cfg.Headless,
		"exec":     cfg.ExecPath,
	}).Info("Browser started")

	closeSelector := cfg.CloseSelector
	if closeSelector == "" {
		closeSelector = defaultCloseSelector
	}

	return &Browser{
		cfg:           cfg,
		closeSelector: closeSelector,
		limiter:       limiter,
		logger:        log,
		ctx:           tabCtx,
		cancelAlloc:   cancelAlloc,
		cancelTab:     cancelTab,
	}, nil
}

// Close shuts the tab and the browser process down
func (b *Browser) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

// run executes actions on the tab with the per-action timeout, aborting early
// when ctx is cancelled
func (b *Browser) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	return b.runFor(ctx, op, b.cfg.ActionTimeout, actions...)
}

func (b *Browser) runFor(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.Wrap(errs.ErrorTypeDriver, op, err)
	}
	return nil
}

// throttled is run behind the action limiter
func (b *Browser) throttled(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	return b.run(ctx, op, actions...)
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.logger.WithField("url", url).Debug("Navigating")
	return b.throttled(ctx, "navigate", chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (b *Browser) CurrentLocation(ctx context.Context) (string, error) {
	var loc string
	err := b.run(ctx, "location", chromedp.Location(&loc))
	return loc, err
}

func (b *Browser) Discover(ctx context.Context, selector string) ([]driver.Handle, error) {
	return b.DiscoverWithin(ctx, nil, selector)
}

func (b *Browser) DiscoverWithin(ctx context.Context, h driver.Handle, selector string) ([]driver.Handle, error) {
	nodes, err := b.query(ctx, h, selector)
	if err != nil {
		return nil, err
	}
	out := make([]driver.Handle, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (b *Browser) ScrollForward(ctx context.Context) error {
	return b.throttled(ctx, "scroll forward",
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

func (b *Browser) ScrollBackward(ctx context.Context, offset int) error {
	return b.throttled(ctx, "scroll backward",
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, -%d);`, offset), nil))
}

func (b *Browser) ReadText(ctx context.Context, h driver.Handle, selector string) (string, error) {
	n, err := b.first(ctx, h, selector)
	if err != nil {
		return "", err
	}
	var text string
	if err := b.run(ctx, "read text", chromedp.TextContent([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ReadAttribute resolves href and src through the DOM property so relative
// links come back absolute; other attributes are read as written.
func (b *Browser) ReadAttribute(ctx context.Context, h driver.Handle, selector, name string) (string, error) {
	n, err := b.first(ctx, h, selector)
	if err != nil {
		return "", err
	}
	if name == "href" || name == "src" {
		var v string
		if err := b.run(ctx, "read "+name, chromedp.JavascriptAttribute([]cdp.NodeID{n.NodeID}, name, &v, chromedp.ByNodeID)); err != nil {
			return "", err
		}
		return v, nil
	}
	v, ok := n.Attribute(name)
	if !ok {
		return "", driver.ErrNotFound
	}
	return v, nil
}

func (b *Browser) WaitUntilPresent(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := b.runFor(ctx, "wait "+selector, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, err
	}
}

func (b *Browser) OpenDetailView(ctx context.Context, h driver.Handle) error {
	n, err := node(h)
	if err != nil {
		return err
	}
	if n == nil {
		return errs.New(errs.ErrorTypeDriver, "open detail", "no tile handle")
	}
	// tiles wrap their link; click the anchor when there is one
	target := n
	if anchors, err := b.query(ctx, n, "a"); err == nil && len(anchors) > 0 {
		target = anchors[0]
	}
	return b.throttled(ctx, "open detail",
		chromedp.ScrollIntoView([]cdp.NodeID{target.NodeID}, chromedp.ByNodeID),
		chromedp.Click([]cdp.NodeID{target.NodeID}, chromedp.ByNodeID),
	)
}

// CloseDetailView clicks the close button, or presses Escape when there is none
func (b *Browser) CloseDetailView(ctx context.Context) error {
	if b.closeSelector != "" {
		if buttons, err := b.query(ctx, nil, b.closeSelector); err == nil && len(buttons) > 0 {
			return b.throttled(ctx, "close detail",
				chromedp.Click([]cdp.NodeID{buttons[0].NodeID}, chromedp.ByNodeID))
		}
	}
	return b.throttled(ctx, "close detail", chromedp.KeyEvent(kb.Escape))
}

// query returns all matches of selector under h without waiting for them
func (b *Browser) query(ctx context.Context, h driver.Handle, selector string) ([]*cdp.Node, error) {
	root, err := node(h)
	if err != nil {
		return nil, err
	}
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if root != nil {
		opts = append(opts, chromedp.FromNode(root))
	}
	var nodes []*cdp.Node
	if err := b.run(ctx, "query "+selector, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (b *Browser) first(ctx context.Context, h driver.Handle, selector string) (*cdp.Node, error) {
	if selector == "" {
		n, err := node(h)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, driver.ErrNotFound
		}
		return n, nil
	}
	nodes, err := b.query(ctx, h, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, driver.ErrNotFound
	}
	return nodes[0], nil
}

func node(h driver.Handle) (*cdp.Node, error) {
	if h == nil {
		return nil, nil
	}
	n, ok := h.(*cdp.Node)
	if !ok {
		return nil, errs.New(errs.ErrorTypeDriver, "handle", fmt.Sprintf("unexpected handle type %T", h))
	}
	return n, nil
}
