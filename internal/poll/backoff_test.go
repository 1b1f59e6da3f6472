package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_Success(t *testing.T) {
	b := Backoff{
		MaxRetries: 3,
		Initial:    10 * time.Millisecond,
	}

	called := 0
	err := Retry(context.Background(), b, func() error {
		called++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, called, "should succeed on first attempt")
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	b := Backoff{
		MaxRetries: 5,
		Initial:    1 * time.Millisecond,
	}

	called := 0
	err := Retry(context.Background(), b, func() error {
		called++
		if called < 3 {
			return errors.New("daemon not running")
		}
		return nil
	}, func(err error) bool {
		return true
	})

	require.NoError(t, err)
	assert.Equal(t, 3, called, "should succeed on third attempt")
}

func TestRetry_Exhausted(t *testing.T) {
	b := Backoff{
		MaxRetries: 3,
		Initial:    1 * time.Millisecond,
	}

	called := 0
	testErr := errors.New("no devices")
	err := Retry(context.Background(), b, func() error {
		called++
		return testErr
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, called, "should attempt MaxRetries times")
	assert.ErrorIs(t, err, testErr)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestRetry_NonRetryableError(t *testing.T) {
	b := Backoff{
		MaxRetries: 5,
		Initial:    1 * time.Millisecond,
	}

	fatal := errors.New("adb not found")
	called := 0
	err := Retry(context.Background(), b, func() error {
		called++
		if called == 2 {
			return fatal
		}
		return errors.New("transient")
	}, func(err error) bool {
		return !errors.Is(err, fatal)
	})

	require.Error(t, err)
	assert.Equal(t, 2, called, "should stop on non-retryable error")
	assert.ErrorIs(t, err, fatal)
}

func TestRetry_ContextCanceled(t *testing.T) {
	b := Backoff{
		MaxRetries: 10,
		Initial:    50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	called := 0
	err := Retry(ctx, b, func() error {
		called++
		if called == 2 {
			cancel()
		}
		return errors.New("error")
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, called, 3, "should stop soon after context canceled")
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{
		Initial:    10 * time.Millisecond,
		Max:        50 * time.Millisecond,
		MaxRetries: 5,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 50 * time.Millisecond}, // capped
		{5, 50 * time.Millisecond}, // capped
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, b.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoff_ConstantDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 100 * time.Millisecond, MaxRetries: 10}

	for attempt := 1; attempt < 10; attempt++ {
		assert.Equal(t, 100*time.Millisecond, b.delay(attempt), "attempt %d", attempt)
	}
}
