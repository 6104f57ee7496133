package crawler

import (
	"context"
	"strings"
	"time"

	"igcrawler/pkg/driver"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/retry"
)

// GateState is the position of the detail retry gate
type GateState int

const (
	GateIdle GateState = iota
	GateChecking
	GateAdvanced
	GateStuck
)

func (s GateState) String() string {
	switch s {
	case GateChecking:
		return "checking"
	case GateAdvanced:
		return "advanced"
	case GateStuck:
		return "stuck"
	default:
		return "idle"
	}
}

// Gate confirms that the detail view shows the item being extracted before it
// is read. The last observed key survives Reset for diagnostics and for checks
// made without an expected key.
type Gate struct {
	driver      driver.PageDriver
	selector    string
	maxAttempts int
	poll        time.Duration

	state    GateState
	attempts int
	lastKey  string
}

// NewGate creates a gate reading the in-view key from selector's href
func NewGate(d driver.PageDriver, selector string, maxAttempts int, poll time.Duration) *Gate {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Gate{driver: d, selector: selector, maxAttempts: maxAttempts, poll: poll}
}

// Check polls the in-view key until it names the same item as expected or the
// attempts run out. A view lagging on any other item counts as a failed
// attempt. With an empty expected key the view only has to differ from the
// last one seen. It returns GateAdvanced or GateStuck.
func (g *Gate) Check(ctx context.Context, expected string) GateState {
	g.state = GateChecking

	err := retry.Do(func() error {
		g.attempts++
		key, err := g.driver.ReadAttribute(ctx, nil, g.selector, "href")
		key = strings.TrimSpace(key)
		switch {
		case err != nil:
			return errs.Wrap(errs.ErrorTypeStuck, "detail gate", err)
		case key == "":
			return errs.New(errs.ErrorTypeStuck, "detail gate", "no key in view")
		case expected != "" && !feed.SameItem(key, expected):
			g.lastKey = key
			return errs.New(errs.ErrorTypeStuck, "detail gate", "view shows another item")
		case expected == "" && key == g.lastKey:
			return errs.New(errs.ErrorTypeStuck, "detail gate", "view did not advance")
		}
		g.lastKey = key
		return nil
	}, &retry.Config{
		MaxAttempts: g.maxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: g.poll},
		RetryIf:     func(err error) bool { return errs.IsType(err, errs.ErrorTypeStuck) },
		Context:     ctx,
	})

	if err != nil {
		g.state = GateStuck
	} else {
		g.state = GateAdvanced
	}
	return g.state
}

// Reset returns the gate to idle for the next item
func (g *Gate) Reset() {
	g.state = GateIdle
	g.attempts = 0
}

func (g *Gate) State() GateState { return g.state }
func (g *Gate) Attempts() int    { return g.attempts }
func (g *Gate) LastKey() string  { return g.lastKey }
