// Package agent installs and runs the on-device profiler agent.
//
// The agent is a native binary bundled per ABI. A session selects the
// binary matching the device, pushes it together with a generated config
// file to a fixed device directory and launches it in the background. The
// agent reports readiness on its first line of output.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/constants"
	"github.com/tracehelper/tracehelper/internal/device"
	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/safe"
)

// Deployment describes an agent installed on a device.
type Deployment struct {
	ABI        string
	Checksum   uint64
	Dir        string
	BinaryPath string
	ConfigPath string
}

// LaunchCommand returns the shell command that starts the agent.
func (d *Deployment) LaunchCommand() string {
	return fmt.Sprintf("%s -config_file=%s", d.BinaryPath, d.ConfigPath)
}

// Deployer copies the agent binary and its config onto a device.
type Deployer struct {
	deviceDir  string
	scratchDir string
	logger     zerolog.Logger
}

// NewDeployer creates a deployer installing into deviceDir. Local config
// files are staged in scratchDir.
func NewDeployer(deviceDir, scratchDir string, logger zerolog.Logger) *Deployer {
	if deviceDir == "" {
		deviceDir = constants.DefaultDeviceDir
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Deployer{deviceDir: deviceDir, scratchDir: scratchDir, logger: logger}
}

// Deploy installs the selected binary. Any previous copy is removed first,
// the directory is created if missing and the binary is made executable.
// Devices whose chmod rejects symbolic modes get an octal retry.
func (d *Deployer) Deploy(ctx context.Context, dev device.Device, sel *Selection) (*Deployment, error) {
	const op = "deploy agent"

	dep := &Deployment{
		ABI:        sel.ABI,
		Checksum:   sel.Checksum,
		Dir:        d.deviceDir,
		BinaryPath: path.Join(d.deviceDir, constants.AgentBinaryName),
		ConfigPath: path.Join(d.deviceDir, constants.AgentConfigFileName),
	}

	if _, err := run(ctx, dev, "rm -f "+dep.BinaryPath); err != nil {
		return nil, errs.Wrap(errs.KindDeployFailed, op, err, "cannot remove previous agent")
	}
	if _, err := run(ctx, dev, "mkdir -p "+dep.Dir); err != nil {
		return nil, errs.Wrap(errs.KindDeployFailed, op, err, "cannot create "+dep.Dir)
	}
	if err := dev.Push(ctx, sel.LocalPath, dep.BinaryPath); err != nil {
		return nil, errs.Wrap(errs.KindDeployFailed, op, err, "cannot push agent")
	}

	out, err := run(ctx, dev, "chmod +x "+dep.BinaryPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindDeployFailed, op, err, "cannot make agent executable")
	}
	if strings.Contains(out, constants.ChmodBadMode) {
		d.logger.Debug().Str("output", strings.TrimSpace(out)).Msg("chmod rejected symbolic mode, retrying with octal")
		if _, err := run(ctx, dev, "chmod 777 "+dep.BinaryPath); err != nil {
			return nil, errs.Wrap(errs.KindDeployFailed, op, err, "cannot make agent executable")
		}
	}

	d.logger.Info().
		Str("abi", dep.ABI).
		Str("path", dep.BinaryPath).
		Msg("Agent deployed")

	return dep, nil
}

// WriteAgentConfig generates the agent config for servicePort, stages it
// locally and pushes it next to the binary. The staged copy is removed
// afterwards.
func (d *Deployer) WriteAgentConfig(ctx context.Context, dev device.Device, dep *Deployment, servicePort int) error {
	const op = "write agent config"

	data := NewAgentConfig(servicePort).Marshal()

	//nolint:gosec // G301: scratch directory is private to this process
	if err := os.MkdirAll(d.scratchDir, 0o755); err != nil {
		return errs.Wrap(errs.KindConfigPushFailed, op, err, "cannot create scratch directory")
	}
	local := filepath.Join(d.scratchDir, constants.AgentConfigFileName)
	if err := safe.ReplaceFile(local, data, &safe.Options{Perm: 0o644}); err != nil {
		return errs.Wrap(errs.KindConfigPushFailed, op, err, "cannot stage agent config")
	}
	defer safe.RemovePath(local, d.logger)

	if _, err := run(ctx, dev, "rm -f "+dep.ConfigPath); err != nil {
		return errs.Wrap(errs.KindConfigPushFailed, op, err, "cannot remove previous agent config")
	}
	if err := dev.Push(ctx, local, dep.ConfigPath); err != nil {
		return errs.Wrap(errs.KindConfigPushFailed, op, err, "cannot push agent config")
	}

	d.logger.Debug().
		Str("path", dep.ConfigPath).
		Int("service_port", servicePort).
		Msg("Agent config pushed")
	return nil
}

// run executes a short shell command and returns its collected output.
func run(ctx context.Context, dev device.Device, cmd string) (string, error) {
	var out bytes.Buffer
	if err := dev.Shell(ctx, cmd, &out); err != nil {
		return out.String(), fmt.Errorf("%s: %w", cmd, err)
	}
	return out.String(), nil
}
