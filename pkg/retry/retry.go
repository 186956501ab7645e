package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, first one included.
	// Zero means unlimited.
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf decides whether a failed attempt is worth another one.
	RetryIf func(error) bool
	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns three attempts one, two and three seconds apart.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     Proportional(time.Second),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf retries typed errors by their type, never retries context
// errors, and retries anything else.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var reqErr *errs.Error
	if errors.As(err, &reqErr) {
		return errs.IsRetryable(reqErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return true
}

// UntilCanceled retries every failure as long as ctx is alive. Per-attempt
// timeouts surface as deadline errors but remain retryable; only the
// caller's own cancellation stops the loop.
func UntilCanceled(ctx context.Context) func(error) bool {
	return func(err error) bool {
		return err != nil && ctx.Err() == nil
	}
}

// TransientOnly is UntilCanceled restricted to failures errs.IsTransient
// accepts, so 404s and auth refusals fail on the first attempt.
func TransientOnly(ctx context.Context) func(error) bool {
	alive := UntilCanceled(ctx)
	return func(err error) bool {
		return alive(err) && errs.IsTransient(err)
	}
}

// Do executes op until it succeeds, RetryIf rejects the error, attempts run
// out, or ctx is done. No wait follows the final attempt.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			log.DebugWithFields("error is not retryable", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}
