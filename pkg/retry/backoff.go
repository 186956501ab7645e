package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy maps the number of the attempt that just failed to the
// wait before the next one.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// LinearBackoff grows the delay by Increment on every attempt. A zero
// Increment gives a constant delay.
type LinearBackoff struct {
	BaseDelay time.Duration
	// MaxDelay caps the delay; zero means no cap.
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

// Proportional returns delay * attempt: delay after the first failure,
// 2*delay after the second, and so on.
func Proportional(delay time.Duration) *LinearBackoff {
	return &LinearBackoff{BaseDelay: delay, Increment: delay}
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return finish(delay, lb.MaxDelay, lb.JitterFactor)
}

// finish applies the cap, then jitter, and clamps at zero.
func finish(delay float64, maxDelay time.Duration, jitterFactor float64) time.Duration {
	if maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if jitterFactor > 0 {
		jitter := delay * jitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
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
