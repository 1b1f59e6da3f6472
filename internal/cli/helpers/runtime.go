// Package helpers holds the plumbing shared by tracehelper commands:
// configuration and logger setup, device selection, signal handling,
// output formatting and terminal styles.
package helpers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tracehelper/tracehelper/internal/adb"
	"github.com/tracehelper/tracehelper/internal/config"
	"github.com/tracehelper/tracehelper/internal/device"
	"github.com/tracehelper/tracehelper/internal/logging"
)

// Runtime bundles what a command runs with.
type Runtime struct {
	Loader *config.Loader
	Config *config.Config
	Logger zerolog.Logger
}

// NewRuntime loads the configuration and builds the logger. A non-empty
// logLevel overrides the configured level.
func NewRuntime(logLevel string) (*Runtime, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})

	return &Runtime{Loader: loader, Config: cfg, Logger: logger}, nil
}

// Bridge returns the adb bridge configured for rt.
func (rt *Runtime) Bridge() *adb.Bridge {
	logger := logging.Component(rt.Logger, "adb")
	runner := adb.NewExecRunner(rt.Config.ADB.Path, logger)
	return adb.NewBridge(runner, adb.Options{
		ConnectAttempts: rt.Config.ADB.ConnectAttempts,
		ConnectInterval: rt.Config.ADB.ConnectInterval,
		SettleInterval:  rt.Config.Profiling.CompletionInterval,
	}, logger)
}

// SelectDevice returns the configured device, or the first connected one.
func (rt *Runtime) SelectDevice(ctx context.Context) (device.Device, error) {
	return device.Select(ctx, rt.Bridge(), rt.Config.ADB.Serial)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler.
func SignalContext(parent context.Context, logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Debug().Stringer("signal", sig).Msg("Interrupted, cleaning up")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// LogLevelFlag reads the persistent --log-level flag.
func LogLevelFlag(cmd *cobra.Command) string {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return ""
	}
	return level
}

// Errorf writes a styled error line to stderr.
func Errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(os.Stderr, ErrorStyle.Render(fmt.Sprintf(format, args...)))
}
