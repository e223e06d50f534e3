// Package retry classifies transient capability failures and retries them
// with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const MaxRetries = 3

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// Do calls fn until it succeeds, returns a non-retryable error, or
// MaxRetries retries have been spent. The wait between attempts is
// produced by wait, which defaults to Backoff.
func Do(ctx context.Context, wait func(int) time.Duration, fn func(context.Context) error) error {
	if wait == nil {
		wait = Backoff
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil || !IsRetryable(err) || attempt >= MaxRetries {
			return err
		}
		t := time.NewTimer(wait(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-t.C:
		}
	}
}
