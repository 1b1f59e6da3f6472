package trace

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/tracehelper/tracehelper/internal/agent"
	"github.com/tracehelper/tracehelper/internal/cli/helpers"
	"github.com/tracehelper/tracehelper/internal/config"
	"github.com/tracehelper/tracehelper/internal/constants"
	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/logging"
	"github.com/tracehelper/tracehelper/internal/session"
)

// flags holds the trace command line.
type flags struct {
	adbPath     string
	serial      string
	port        int
	interval    int
	seconds     int
	output      string
	agentBundle string
}

// NewTraceCmd creates the trace command.
func NewTraceCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "trace <package>",
		Short: "Capture a method trace from a running app",
		Long: `Capture a method trace from a running app on a connected device.

Profiling starts once the on-device agent is up and stops when Enter is
pressed, or after --time seconds. The trace is written to --output.

Examples:
  # Sample every 10µs until Enter is pressed
  tracehelper trace com.example.app

  # Instrumented trace for 5 seconds on a specific device
  tracehelper trace com.example.app -e emulator-5554 -i 0 -t 5 -o startup.trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := helpers.NewRuntime(helpers.LogLevelFlag(cmd))
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), &f, rt.Config)
			if err := rt.Config.Validate(); err != nil {
				return err
			}
			if err := checkDwell(f.seconds, term.IsTerminal(int(os.Stdin.Fd()))); err != nil {
				return err
			}

			return run(cmd, rt, args[0], f.seconds)
		},
	}

	cmd.Flags().StringVarP(&f.adbPath, "adb", "a", constants.DefaultADBPath, "Path to the adb executable")
	cmd.Flags().StringVarP(&f.serial, "serial", "e", "", "Device serial (default: first connected device)")
	cmd.Flags().IntVarP(&f.port, "port", "p", constants.DefaultServicePort, "Device port the agent listens on")
	cmd.Flags().IntVarP(&f.interval, "interval", "i", constants.DefaultSamplingIntervalMicros,
		"Sampling interval in microseconds (0 for instrumented tracing)")
	cmd.Flags().IntVarP(&f.seconds, "time", "t", 0, "Profile for this many seconds instead of waiting for Enter")
	cmd.Flags().StringVarP(&f.output, "output", "o", constants.DefaultOutputFile, "Trace output file")
	cmd.Flags().StringVar(&f.agentBundle, "agent-bundle", "", "Agent bundle directory or zip archive")

	return cmd
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(fs *pflag.FlagSet, f *flags, cfg *config.Config) {
	if fs.Changed("adb") {
		cfg.ADB.Path = f.adbPath
	}
	if fs.Changed("serial") {
		cfg.ADB.Serial = f.serial
	}
	if fs.Changed("port") {
		cfg.Agent.ServicePort = f.port
	}
	if fs.Changed("interval") {
		cfg.Profiling.SamplingInterval = f.interval
	}
	if fs.Changed("output") {
		cfg.Profiling.Output = f.output
	}
	if fs.Changed("agent-bundle") {
		cfg.Agent.Bundle = f.agentBundle
	}
}

// checkDwell rejects waiting for Enter when stdin cannot deliver it.
func checkDwell(seconds int, interactive bool) error {
	if seconds <= 0 && !interactive {
		return errs.New(errs.KindUnknown, "trace", "--time is required when stdin is not a terminal")
	}
	return nil
}

// resolveBundle returns the configured bundle or the first one found in
// the default locations.
func resolveBundle(cfg *config.Config, stateDir string) (string, error) {
	if cfg.Agent.Bundle != "" {
		return cfg.Agent.Bundle, nil
	}
	return agent.FindBundle(agent.BundleSearchPaths(stateDir))
}

func run(cmd *cobra.Command, rt *helpers.Runtime, packageName string, seconds int) error {
	cfg := rt.Config
	logger := rt.Logger

	ctx, stop := helpers.SignalContext(cmd.Context(), logger)
	defer stop()

	bundle, err := resolveBundle(cfg, rt.Loader.Dir())
	if err != nil {
		return err
	}

	dev, err := rt.SelectDevice(ctx)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "tracehelper-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	catalog, err := agent.OpenCatalog(bundle, scratch, logger)
	if err != nil {
		return err
	}

	ctrl := session.NewController(dev, catalog, session.OptionsFrom(cfg, scratch),
		logging.Component(logger, "session"))
	defer ctrl.Terminate()

	pc := session.ProfilingConfigFrom(cfg, packageName)
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintln(out, helpers.TitleStyle.Render("Profiling "+packageName))
	_, _ = fmt.Fprintln(out, helpers.Field("Device", dev.Serial()))
	_, _ = fmt.Fprintln(out, helpers.Field("Mode", describeMode(pc)))

	if err := ctrl.Start(ctx, pc); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "Start profiling...")
	info := ctrl.Info()
	_, _ = fmt.Fprintln(out, helpers.Field("Agent", fmt.Sprintf("%s, tcp:%d -> tcp:%d", info.ABI, info.LocalPort, info.RemotePort)))

	if err := dwell(ctx, cmd.InOrStdin(), out, seconds); err != nil {
		return errs.Wrap(errs.KindInterrupted, "trace", err, "profiling abandoned, no trace written")
	}

	o, err := ctrl.Stop(ctx)
	if err != nil {
		return err
	}

	rt.Logger.Debug().Int("bytes", len(o.Data)).Str("output", pc.OutputPath).Msg("Trace written")
	_, _ = fmt.Fprintln(out, helpers.SuccessStyle.Render(
		fmt.Sprintf("Stop profiling success. The trace file has been saved to %q", pc.OutputPath)))
	return nil
}

// dwell blocks while the app is being profiled: for the given number of
// seconds, or until a line is read from in. Cancelling ctx ends the wait
// with ctx.Err().
func dwell(ctx context.Context, in io.Reader, out io.Writer, seconds int) error {
	if seconds > 0 {
		_, _ = fmt.Fprintln(out, helpers.HintStyle.Render(fmt.Sprintf("Profiling for %ds...", seconds)))

		timer := time.NewTimer(time.Duration(seconds) * time.Second)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, _ = fmt.Fprintln(out, helpers.HintStyle.Render("Press Enter to stop profiling."))

	lineCh := make(chan struct{}, 1)
	go func() {
		_, _ = bufio.NewReader(in).ReadString('\n')
		lineCh <- struct{}{}
	}()

	select {
	case <-lineCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func describeMode(pc session.ProfilingConfig) string {
	if pc.Mode() == session.ModeSampling {
		return fmt.Sprintf("sampling every %dµs", pc.SamplingInterval)
	}
	return "instrumented"
}
