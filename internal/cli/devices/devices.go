// Package devices implements the 'tracehelper devices' command.
package devices

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehelper/tracehelper/internal/adb"
	"github.com/tracehelper/tracehelper/internal/cli/helpers"
)

// Row is one device in the listing.
type Row struct {
	Serial string `header:"SERIAL" json:"serial" yaml:"serial"`
	State  string `header:"STATE" json:"state" yaml:"state"`
	ABIs   string `header:"ABIS" json:"abis,omitempty" yaml:"abis,omitempty"`
}

// NewDevicesCmd creates the devices command.
func NewDevicesCmd() *cobra.Command {
	var (
		format  string
		adbPath string
	)

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		Long: `List the devices known to the adb server.

Only devices in the "device" state can be profiled; unauthorized or offline
devices are listed with their state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := helpers.NewRuntime(helpers.LogLevelFlag(cmd))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("adb") {
				rt.Config.ADB.Path = adbPath
			}

			formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
			if err != nil {
				return err
			}

			ctx, stop := helpers.SignalContext(cmd.Context(), rt.Logger)
			defer stop()

			bridge := rt.Bridge()
			entries, err := bridge.List(ctx)
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}

			rows := make([]Row, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, describe(ctx, rt, e))
			}

			if len(rows) == 0 && helpers.OutputFormat(format) == helpers.FormatTable {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), helpers.HintStyle.Render("No devices connected."))
				return nil
			}
			return formatter.Format(rows, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&adbPath, "adb", "a", "adb", "Path to the adb executable")
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, []helpers.OutputFormat{
		helpers.FormatTable,
		helpers.FormatJSON,
		helpers.FormatYAML,
	})

	return cmd
}

// describe builds the row for e, querying ABIs of online devices.
func describe(ctx context.Context, rt *helpers.Runtime, e adb.DeviceEntry) Row {
	row := Row{Serial: e.Serial, State: e.State}
	if e.State != "device" {
		return row
	}

	logger := rt.Logger.With().Str("serial", e.Serial).Logger()
	dev := adb.NewDevice(e.Serial, adb.NewExecRunner(rt.Config.ADB.Path, logger), adb.Options{}, logger)
	abis, err := dev.ABIs(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Cannot read device ABIs")
		return row
	}
	row.ABIs = strings.Join(abis, ",")
	return row
}
