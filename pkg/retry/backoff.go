package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// Scheduler is the doubling interval used between empty pagination rounds.
// It starts at Min and never caps itself; callers bound it with their own budget.
type Scheduler struct {
	Min time.Duration
}

// NewScheduler returns a scheduler whose minimum interval is one unit
func NewScheduler(unit time.Duration) *Scheduler {
	if unit <= 0 {
		unit = time.Second
	}
	return &Scheduler{Min: unit}
}

// NextInterval doubles the current interval. A non-positive interval restarts at Min.
func (s *Scheduler) NextInterval(current time.Duration) time.Duration {
	if current <= 0 {
		return s.Min
	}
	next := current * 2
	if next < current {
		// overflow; hold at the largest representable interval
		return time.Duration(math.MaxInt64)
	}
	return next
}

// Reset returns the minimum interval
func (s *Scheduler) Reset() time.Duration {
	return s.Min
}

// Strategy returns the scheduler as a BackoffStrategy for Do. Its delays are
// Min, 2*Min, 4*Min... with no cap.
func (s *Scheduler) Strategy() BackoffStrategy {
	return schedulerStrategy{s}
}

type schedulerStrategy struct {
	*Scheduler
}

// Reset is a no-op; delays depend only on the attempt number
func (schedulerStrategy) Reset() {}

// NextDelay returns the interval of the given attempt: Min, 2*Min, 4*Min...
func (s *Scheduler) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := s.Min
	for i := 1; i < attempt; i++ {
		d = s.NextInterval(d)
	}
	return d
}

// ExponentialBackoff implements capped exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset is a no-op; the delay is derived from the attempt number
func (eb *ExponentialBackoff) Reset() {}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Reset resets the backoff (no-op for constant backoff)
func (cb *ConstantBackoff) Reset() {}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
