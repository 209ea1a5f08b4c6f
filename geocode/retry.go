package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides how often a failed geocoding call is attempted again
type RetryPolicy interface {
	Do(ctx context.Context, fn func() error) error
}

// NoRetry makes exactly one attempt
type NoRetry struct{}

func (NoRetry) Do(_ context.Context, fn func() error) error {
	return fn()
}

// ExponentialRetry retries temporary failures with exponential backoff.
// MaxAttempts counts the first call; zero means a single attempt.
type ExponentialRetry struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p ExponentialRetry) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts <= 1 {
		return fn()
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// retryable treats transport errors and 429/5xx responses as temporary.
// Cancellation, empty results and 4xx responses are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoResult) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
