// Package retry runs an operation repeatedly with a pluggable backoff.
//
// The fetcher uses it with Proportional backoff: after the n-th failed
// attempt it waits delay*n before trying again, and gives up after
// MaxAttempts attempts in total.
//
//	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
//		return get(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.Proportional(500 * time.Millisecond),
//		RetryIf:     retry.UntilCanceled(ctx),
//		Logger:      log,
//	})
//
// OnRetry observes every scheduled wait, which is how tests assert on
// the backoff sequence without sleeping for real.
package retry
