package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
)

// fastPolicy keeps retry tests quick.
func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          3,
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connectivity failure", errors.New("dial tcp: connection refused"), true},
		{"rate limited", &APIError{StatusCode: http.StatusTooManyRequests}, true},
		{"server fault", &APIError{StatusCode: http.StatusInternalServerError}, true},
		{"busy backend", &APIError{StatusCode: http.StatusServiceUnavailable, Kind: apperr.KindDatabase, Code: apperr.CodeBusy}, true},
		{"not implemented", &APIError{StatusCode: http.StatusNotImplemented}, false},
		{"validation", &APIError{StatusCode: http.StatusBadRequest, Kind: apperr.KindValidation}, false},
		{"conflict", &APIError{StatusCode: http.StatusConflict, Kind: apperr.KindConflict}, false},
		{"not found", &APIError{StatusCode: http.StatusNotFound, Kind: apperr.KindNotFound}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &APIError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryablePropagatesImmediately(t *testing.T) {
	attempts := 0
	wantErr := &APIError{StatusCode: http.StatusConflict, Kind: apperr.KindConflict}
	err := fastPolicy().Do(context.Background(), func() error {
		attempts++
		return wantErr
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "conflicts must never be blindly retried")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestDo_ExhaustionPropagatesLastError(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), func() error {
		attempts++
		return &APIError{StatusCode: http.StatusBadGateway}
	})
	require.Error(t, err)
	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, 4, attempts)
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := fastPolicy().Do(ctx, func() error {
		attempts++
		return &APIError{StatusCode: http.StatusServiceUnavailable}
	})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1, "a cancelled context stops the retry loop")
}
