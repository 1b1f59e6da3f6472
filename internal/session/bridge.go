package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/constants"
	"github.com/tracehelper/tracehelper/internal/device"
	"github.com/tracehelper/tracehelper/internal/poll"
)

// CompletionBridge hands the outcome of a profiling run from the device
// callback goroutine to the waiting session. It holds at most one outcome;
// the first signal after a Reset wins and later ones are dropped.
//
// CompletionBridge implements device.ProfilingHandler.
type CompletionBridge struct {
	slot   atomic.Pointer[Outcome]
	logger zerolog.Logger
}

var _ device.ProfilingHandler = (*CompletionBridge)(nil)

// NewCompletionBridge creates an empty bridge.
func NewCompletionBridge(logger zerolog.Logger) *CompletionBridge {
	return &CompletionBridge{logger: logger}
}

// Reset clears the slot.
func (b *CompletionBridge) Reset() {
	b.slot.Store(nil)
}

// Signal stores o if the slot is empty and reports whether it did.
func (b *CompletionBridge) Signal(o Outcome) bool {
	if b.slot.CompareAndSwap(nil, &o) {
		return true
	}
	b.logger.Debug().Stringer("outcome", o).Msg("Dropping outcome, slot already filled")
	return false
}

// Peek returns the stored outcome without clearing it.
func (b *CompletionBridge) Peek() (Outcome, bool) {
	if o := b.slot.Load(); o != nil {
		return *o, true
	}
	return Outcome{}, false
}

// Wait polls the slot every interval until an outcome arrives. Cancelling
// ctx yields an Interrupted outcome.
func (b *CompletionBridge) Wait(ctx context.Context, interval time.Duration) Outcome {
	if interval <= 0 {
		interval = constants.DefaultCompletionPollInterval
	}

	var result Outcome
	err := poll.Until(ctx, poll.Config{Interval: interval}, func() (bool, error) {
		o, ok := b.Peek()
		result = o
		return ok, nil
	})
	if err != nil {
		return Interrupted()
	}
	return result
}

// OnSuccessData implements device.ProfilingHandler.
func (b *CompletionBridge) OnSuccessData(data []byte, c device.Client) {
	b.logger.Debug().Str("package", c.PackageName()).Int("bytes", len(data)).Msg("Trace data received")
	b.Signal(Saved(data))
}

// OnSuccessPath implements device.ProfilingHandler.
func (b *CompletionBridge) OnSuccessPath(remotePath string, c device.Client) {
	b.logger.Debug().Str("package", c.PackageName()).Str("path", remotePath).Msg("Trace left on device")
	b.Signal(SavedAt(remotePath))
}

// OnStartFailure implements device.ProfilingHandler.
func (b *CompletionBridge) OnStartFailure(c device.Client, msg string) {
	b.logger.Debug().Str("package", c.PackageName()).Str("message", msg).Msg("Profiling start failed")
	b.Signal(StartFailed(msg))
}

// OnEndFailure implements device.ProfilingHandler.
func (b *CompletionBridge) OnEndFailure(c device.Client, msg string) {
	b.logger.Debug().Str("package", c.PackageName()).Str("message", msg).Msg("Profiling stop failed")
	b.Signal(StopFailed(msg))
}
