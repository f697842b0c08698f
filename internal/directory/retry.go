package directory

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
	retryMultiplier      = 2.0
)

func (c *Client) newBackOff() backoff.BackOff {
	if c.backOff != nil {
		return c.backOff()
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryInitialInterval
	exp.MaxInterval = retryMaxInterval
	exp.Multiplier = retryMultiplier
	exp.Reset()
	return exp
}

// withRetry runs fn until it succeeds, fails permanently, or the retry
// budget is spent. Cancellation is never retried.
func withRetry[T any](ctx context.Context, c *Client, fn func() (T, error)) (T, error) {
	op := func() (T, error) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
	)
}

// retryable reports whether err may succeed on another attempt. Request
// timeouts are retried; the caller's own cancellation is checked separately.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var serr *StatusError
	return !errors.As(err, &serr)
}
