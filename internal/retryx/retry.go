// Package retryx wraps sethvargo/go-retry into a bounded-retry helper with
// an explicit retryability predicate, so retry policies can be declared and
// tested apart from the code they guard.
package retryx

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Do runs action up to maxAttempts times. A failed attempt is repeated only
// when isRetryable reports the returned error as transient; any other error
// is returned immediately. The error of the last attempt is returned when
// the budget is exhausted.
func Do(ctx context.Context, maxAttempts int, isRetryable func(error) bool, action func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(time.Millisecond))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := action(ctx)
		if err != nil && isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
