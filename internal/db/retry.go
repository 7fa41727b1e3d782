package db

import (
	"context"
	"time"
)

// RetryPolicy bounds a single logical store operation.
type RetryPolicy struct {
	Timeout    time.Duration // per attempt; zero leaves the caller's deadline alone
	MaxRetries int
	Backoff    time.Duration // base delay, doubled on every retry
	OnRetry    func(attempt int, err error)
}

// Do runs fn under the policy. See Query.
func Do(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := Query(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Query runs fn until it succeeds, fails with a permanent error, or retries run out.
// Cancellation of ctx stops immediately and returns ctx.Err().
func Query[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			if delay := p.Backoff << (attempt - 1); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return zero, ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := once(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if IsPermanent(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

func once[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
