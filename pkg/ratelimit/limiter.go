package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces requests. Wait blocks until the next request may start or
// ctx is done.
type Limiter interface {
	Allow() bool
	Wait(ctx context.Context) error
	Reset()
}

// TokenBucket refills continuously at rate tokens per period, holding at
// most capacity tokens.
type TokenBucket struct {
	capacity float64
	tokens   float64
	perToken time.Duration
	last     time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(capacity, rate int, period time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if rate < 1 {
		rate = 1
	}
	tb := &TokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		perToken: period / time.Duration(rate),
		now:      time.Now,
	}
	tb.last = tb.now()
	return tb
}

// PerMinute is shorthand for the requests-per-minute setting.
func PerMinute(requests, burst int) *TokenBucket {
	return NewTokenBucket(burst, requests, time.Minute)
}

// Allow takes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		missing := time.Duration((1 - tb.tokens) * float64(tb.perToken))
		tb.mu.Unlock()
		if missing < time.Millisecond {
			missing = time.Millisecond
		}
		if err := sleep(ctx, missing); err != nil {
			return err
		}
	}
	return nil
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.last = tb.now()
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	if tb.perToken > 0 {
		tb.tokens += float64(now.Sub(tb.last)) / float64(tb.perToken)
	} else {
		tb.tokens = tb.capacity
	}
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}

// Interval enforces a fixed minimum spacing between consecutive requests.
// The first request never waits.
type Interval struct {
	gap  time.Duration
	next time.Time
	now  func() time.Time
	mu   sync.Mutex
}

// NewInterval creates an Interval limiter; a zero gap never blocks.
func NewInterval(gap time.Duration) *Interval {
	return &Interval{gap: gap, now: time.Now}
}

// Allow reports whether a request may start now, reserving the slot if so.
func (iv *Interval) Allow() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	now := iv.now()
	if now.Before(iv.next) {
		return false
	}
	iv.next = now.Add(iv.gap)
	return true
}

// Wait reserves the next slot and sleeps until it starts.
func (iv *Interval) Wait(ctx context.Context) error {
	iv.mu.Lock()
	now := iv.now()
	start := iv.next
	if start.Before(now) {
		start = now
	}
	iv.next = start.Add(iv.gap)
	iv.mu.Unlock()

	return sleep(ctx, start.Sub(now))
}

// Reset forgets the previous request.
func (iv *Interval) Reset() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.next = time.Time{}
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
