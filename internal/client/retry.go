package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds automatic retries of transient failures. It is
// independent of any call site: callers supply the operation, the policy
// supplies classification and backoff.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64

	// RandomizationFactor spreads the delay with random jitter so
	// retrying clients do not synchronize.
	RandomizationFactor float64
}

// DefaultRetryPolicy returns the policy used by the back-office clients.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          4,
		InitialInterval:     250 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// IsRetryable is the pure classification predicate. Connectivity failures,
// rate limiting and server faults other than "not implemented" are
// retryable; validation and conflict responses require fresh input or fresh
// data, so blindly retrying them cannot succeed.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode == http.StatusNotImplemented:
			return false
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	// Anything that never produced a server response is a connectivity
	// failure: dial errors, resets, timeouts.
	return true
}

// Do runs op, retrying per the policy while IsRetryable holds. On a
// non-retryable error or on exhaustion the last error propagates
// immediately.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = p.RandomizationFactor
	bo.MaxElapsedTime = 0 // bounded by retry count, not wall time

	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx))
}
