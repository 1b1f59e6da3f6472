package poll

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backoff configures Retry.
//
// The zero value is not usable; MaxRetries and Initial must be set.
type Backoff struct {
	// MaxRetries is the maximum number of calls to fn. Must be greater than 0.
	MaxRetries int

	// Initial is the delay before the second call. Each further retry
	// doubles it: Initial * 2^(attempt-1).
	Initial time.Duration

	// Max caps the delay. Zero means no cap. Setting Max equal to Initial
	// gives a constant delay.
	Max time.Duration
}

// ShouldRetryFunc reports whether an error from fn is worth another attempt.
// A nil ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
//
// When attempts run out the returned error wraps the last error from fn.
// Cancellation during a delay returns ctx.Err().
func Retry(ctx context.Context, b Backoff, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < b.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.delay(attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d attempts: %w", b.MaxRetries, lastErr)
}

// delay computes the wait before the given attempt (attempt >= 1).
func (b Backoff) delay(attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	d := time.Duration(multiplier * float64(b.Initial))

	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
