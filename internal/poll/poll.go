// Package poll implements the sleep-and-check loops used to observe state
// owned by another goroutine, plus a small backoff retry for transient
// transport failures.
//
// # Polling
//
// Until sleeps for Interval, then calls the check function, and repeats:
//
//	err := poll.Until(ctx, poll.Config{Interval: 100 * time.Millisecond, MaxAttempts: 10},
//	    func() (bool, error) {
//	        return task.Ready(), nil
//	    })
//
// A MaxAttempts of zero polls without an upper bound. The loop is the only
// place the caller blocks, so cancelling ctx always unblocks it.
//
// # Retry
//
// Retry re-runs an operation with exponential backoff:
//
//	err := poll.Retry(ctx, poll.Backoff{MaxRetries: 10, Initial: 100 * time.Millisecond,
//	    Max: 100 * time.Millisecond}, listDevices, nil)
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Until when the attempt budget runs out
// before the check reports done.
var ErrExhausted = errors.New("poll attempts exhausted")

// Config defines a polling loop.
type Config struct {
	// Interval is the sleep before every check. Must be greater than 0.
	Interval time.Duration

	// MaxAttempts bounds the number of checks. Zero means unbounded.
	MaxAttempts int
}

// CheckFunc reports whether the awaited condition holds. A non-nil error
// stops the loop and is returned as is.
type CheckFunc func() (done bool, err error)

// Until polls check until it reports done, fails, the attempt budget is
// exhausted (ErrExhausted) or ctx is done (ctx.Err()).
func Until(ctx context.Context, cfg Config, check CheckFunc) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	return ErrExhausted
}
