// Package adb implements the device interfaces on top of the adb
// command-line client.
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// waitDelay bounds how long a killed adb process may hold its pipes open.
const waitDelay = 2 * time.Second

// CommandError is a non-zero exit of the adb client.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("adb %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Runner executes adb client invocations.
type Runner interface {
	// Output runs adb with args and returns its standard output.
	Output(ctx context.Context, args ...string) ([]byte, error)

	// Stream runs adb with args, delivering each chunk of standard output
	// to out with one Write call. A Write error stops the command and is
	// returned.
	Stream(ctx context.Context, out io.Writer, args ...string) error
}

// ExecRunner runs the adb executable.
type ExecRunner struct {
	path   string
	logger zerolog.Logger
}

// NewExecRunner creates a runner for the adb binary at path. A bare name
// is resolved through $PATH.
func NewExecRunner(path string, logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{path: path, logger: logger}
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Trace().Strs("args", args).Msg("adb")

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), r.commandError(ctx, args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Stream implements Runner.
func (r *ExecRunner) Stream(ctx context.Context, out io.Writer, args ...string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("adb stdout pipe: %w", err)
	}

	r.logger.Trace().Strs("args", args).Msg("adb stream")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.path, err)
	}

	var writeErr error
	buf := make([]byte, 4096)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				writeErr = err
				cancel()
				break
			}
		}
		if readErr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	if writeErr != nil {
		return writeErr
	}
	if waitErr != nil {
		return r.commandError(ctx, args, waitErr, stderr.String())
	}
	return nil
}

func (r *ExecRunner) commandError(ctx context.Context, args []string, err error, stderr string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr),
		}
	}
	return fmt.Errorf("run %s: %w", r.path, err)
}
