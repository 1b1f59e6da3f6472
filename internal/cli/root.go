package cli

import (
	"github.com/spf13/cobra"

	configcmd "github.com/tracehelper/tracehelper/internal/cli/config"
	"github.com/tracehelper/tracehelper/internal/cli/devices"
	"github.com/tracehelper/tracehelper/internal/cli/trace"
	"github.com/tracehelper/tracehelper/pkg/version"
)

// NewRootCmd builds the tracehelper command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracehelper",
		Short: "Method tracing for Android apps",
		Long: `tracehelper captures method traces from apps running on Android devices.

It deploys the profiler agent for the device's ABI, forwards a local port to
it and drives a sampling or instrumented trace of the target app, then writes
the trace file locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(trace.NewTraceCmd())
	root.AddCommand(devices.NewDevicesCmd())
	root.AddCommand(configcmd.NewConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("tracehelper %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
