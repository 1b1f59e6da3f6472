// Package errors classifies profiling session failures and provides
// helpers for cleanup paths that must log rather than return errors.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a failure at warn level.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// BestEffort runs a cleanup step and logs its error instead of returning it.
// Teardown paths use it so one failing step never blocks the next.
func BestEffort(logger zerolog.Logger, step string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn().Err(err).Str("step", step).Msg("Cleanup step failed")
	}
}
