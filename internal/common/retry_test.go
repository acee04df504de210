package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmoura/fatura/internal/service"
)

func fastRetryOptions(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, fastRetryOptions(3))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoverAfterTransientFailure(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("database is locked"), Retryable: true}
		}
		return nil
	}, fastRetryOptions(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errors.New("database is locked"), Retryable: true}
	}, fastRetryOptions(3))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, calls)
}

func TestWithRetryTerminalErrorsAbortImmediately(t *testing.T) {
	for _, terminal := range []error{
		ErrNoPendingTransactions,
		ErrConcurrentClose,
		ErrNotFound,
	} {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return terminal
		}, fastRetryOptions(5))

		assert.ErrorIs(t, err, terminal)
		assert.Equal(t, 1, calls, "terminal error %v must not be retried", terminal)
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return &RetryableError{Err: errors.New("transient"), Retryable: true}
	}, fastRetryOptions(5))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "no pending transactions", err: ErrNoPendingTransactions, want: false},
		{name: "concurrent close", err: ErrConcurrentClose, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{
			name: "flagged retryable",
			err:  &RetryableError{Err: errors.New("busy"), Retryable: true},
			want: true,
		},
		{
			name: "flagged non-retryable",
			err:  &RetryableError{Err: errors.New("corrupt"), Retryable: false},
			want: false,
		},
		{
			name: "wrapped terminal error",
			err:  errors.Join(errors.New("close failed"), ErrConcurrentClose),
			want: false,
		},
		{name: "plain error", err: errors.New("unknown"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestUserErrorUnwraps(t *testing.T) {
	inner := ErrConcurrentClose
	err := NewUserError("another close is already running", inner)

	assert.ErrorIs(t, err, ErrConcurrentClose)
	assert.Contains(t, err.Error(), "another close is already running")
}
