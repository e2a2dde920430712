package classify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaxRetries  = 2
	defaultBaseBackoff = 500 * time.Millisecond
)

// retryableError wraps an error to indicate the request can be retried
// (timeouts, 429s, 5xx responses).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// isRetryableError reports whether err (anywhere in its chain) is retryable.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// withRetries runs fn with bounded exponential backoff. Non-retryable
// errors abort immediately; context cancellation aborts between attempts.
func withRetries(ctx context.Context, maxRetries int, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
