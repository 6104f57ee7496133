// Package retry provides the backoff schedules and bounded retry loop used by
// the crawler.
//
// Scheduler is the doubling interval the pagination controller inserts between
// rounds that discover nothing new. It starts at one unit and never caps
// itself; the caller compares cumulative wait against its own budget.
//
// Do retries an operation under a BackoffStrategy until it succeeds, the
// attempt limit is reached, the error is not retryable, or the context is
// cancelled:
//
//	err := retry.Do(func() error {
//		return checkAdvanced(ctx)
//	}, &retry.Config{
//		MaxAttempts: 10,
//		Backoff:     &retry.ConstantBackoff{Delay: 500 * time.Millisecond},
//		Context:     ctx,
//	})
//	if errors.Is(err, retry.ErrMaxAttempts) {
//		// every attempt failed
//	}
package retry
