// Package config implements the 'tracehelper config' commands.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tracehelper/tracehelper/internal/cli/helpers"
	"github.com/tracehelper/tracehelper/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the tracehelper configuration",
		Long: `Inspect and manage the tracehelper configuration.

The configuration lives in ~/.tracehelper/config.yaml (or under
$TRACEHELPER_CONFIG). TRACEHELPER_* environment variables override file
values, and command-line flags override both.`,
	}

	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newPathCmd())

	return cmd
}

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load()
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), helpers.SuccessStyle.Render("Configuration is valid"))
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(config.NewLoader(), force, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	return cmd
}

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.NewLoader().Path())
		},
	}
}

// initConfig saves the default configuration unless a file already exists
// and force is unset.
func initConfig(loader *config.Loader, force bool, out io.Writer) error {
	if _, err := os.Stat(loader.Path()); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", loader.Path())
	}

	if err := loader.Save(config.DefaultConfig()); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, helpers.SuccessStyle.Render("Wrote "+loader.Path()))
	return nil
}

func writeYAML(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
