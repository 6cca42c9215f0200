package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jakobtroidl/chunkedgraph/chunkederr"
)

// TransientError marks a storage failure the caller should retry
// (spec.md §4.6, §7: aborted, deadline_exceeded, unavailable).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Retry runs fn with exponential backoff as long as it returns a
// *TransientError, bounded by budget (the caller's remaining lease
// time — spec.md §4.6 "retries ... with exponential backoff bounded by
// the lock-expiry budget"); a budget <= 0 means 30 seconds. It
// escalates to chunkederr.StorageFatal
// once budget is exhausted, and passes through any non-transient error
// (including context cancellation) immediately.
func Retry(ctx context.Context, budget time.Duration, fn func(ctx context.Context) error) error {
	if budget <= 0 {
		budget = 30 * time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = budget

	var lastErr error
	op := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var t *TransientError
		if errors.As(err, &t) {
			lastErr = err
			return err // retryable
		}
		lastErr = err
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		var t *TransientError
		if errors.As(lastErr, &t) {
			return chunkederr.Wrap(chunkederr.StorageFatal, "storage retries exhausted", lastErr)
		}
		return lastErr
	}
	return nil
}
