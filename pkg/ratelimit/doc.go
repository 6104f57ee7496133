// Package ratelimit paces browser actions issued by the crawler.
//
// TokenBucket wraps golang.org/x/time/rate and is what the browser driver
// uses: a steady actions-per-minute rate with a small burst. SlidingWindow
// caps the number of actions in any trailing window and suits short bursts
// such as a login sequence.
//
// Both implement Limiter:
//
//	limiter := ratelimit.NewTokenBucket(120, 5)
//	if err := limiter.Wait(ctx); err != nil {
//		return err // ctx cancelled
//	}
package ratelimit
