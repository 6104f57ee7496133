package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces browser actions so the crawler does not hammer the site
type Limiter interface {
	// Allow reports whether an action may proceed right now
	Allow() bool
	// Wait blocks until an action may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to its initial state
	Reset()
}

// TokenBucket spreads actions evenly over a minute with a small burst allowance
type TokenBucket struct {
	mu      sync.Mutex
	perMin  int
	burst   int
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter allowing actionsPerMinute with the given burst.
// A non-positive rate disables limiting.
func NewTokenBucket(actionsPerMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	tb := &TokenBucket{perMin: actionsPerMinute, burst: burst}
	tb.limiter = tb.build()
	return tb
}

func (tb *TokenBucket) build() *rate.Limiter {
	if tb.perMin <= 0 {
		return rate.NewLimiter(rate.Inf, tb.burst)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(tb.perMin)), tb.burst)
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter
}

func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.current().Wait(ctx)
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = tb.build()
}

// SlidingWindow allows at most maxRequests within any windowSize span
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve()
	return ok
}

// reserve records a request if the window has room, otherwise returns how long
// until the oldest request falls out of the window
func (sw *SlidingWindow) reserve() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = append(sw.requests[:0], sw.requests[i:]...)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}
	return sw.requests[0].Sub(cutoff), false
}

func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		delay, ok := sw.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}
