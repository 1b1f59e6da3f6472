package session

import (
	"fmt"
	"time"

	"github.com/tracehelper/tracehelper/internal/config"
	"github.com/tracehelper/tracehelper/internal/constants"
	errs "github.com/tracehelper/tracehelper/internal/errors"
)

// Mode is the profiling technique a session uses.
type Mode int

const (
	// ModeInstrumented records every method entry and exit.
	ModeInstrumented Mode = iota
	// ModeSampling records stacks at a fixed interval.
	ModeSampling
)

func (m Mode) String() string {
	if m == ModeSampling {
		return "sampling"
	}
	return "instrumented"
}

// ProfilingConfig describes one session. It is not modified once the
// session starts.
type ProfilingConfig struct {
	PackageName string
	// ServicePort is the device port the agent listens on.
	ServicePort int
	// SamplingInterval is in microseconds; zero selects instrumented tracing.
	SamplingInterval int
	OutputPath       string
}

// Mode returns the technique selected by the sampling interval.
func (c ProfilingConfig) Mode() Mode {
	if c.SamplingInterval > 0 {
		return ModeSampling
	}
	return ModeInstrumented
}

// Interval returns the sampling interval as a duration.
func (c ProfilingConfig) Interval() time.Duration {
	return time.Duration(c.SamplingInterval) * time.Microsecond
}

// Validate checks c before a session starts.
func (c ProfilingConfig) Validate() error {
	const op = "validate session"

	if c.PackageName == "" {
		return errs.New(errs.KindUnknown, op, "package name is required")
	}
	if err := config.ValidatePort(c.ServicePort); err != nil {
		return errs.Wrap(errs.KindUnknown, op, err, "invalid service port")
	}
	if c.SamplingInterval < 0 {
		return errs.Newf(errs.KindUnknown, op, "sampling interval must not be negative, got %d", c.SamplingInterval)
	}
	if c.OutputPath == "" {
		return errs.New(errs.KindUnknown, op, "output path is required")
	}
	return nil
}

// ProfilingConfigFrom builds a session config for packageName from the
// loaded configuration.
func ProfilingConfigFrom(cfg *config.Config, packageName string) ProfilingConfig {
	return ProfilingConfig{
		PackageName:      packageName,
		ServicePort:      cfg.Agent.ServicePort,
		SamplingInterval: cfg.Profiling.SamplingInterval,
		OutputPath:       cfg.Profiling.Output,
	}
}

// Options tunes a Controller. Zero fields take defaults.
type Options struct {
	DeviceDir  string
	ScratchDir string

	ReadyInterval time.Duration
	ReadyAttempts int

	CompletionInterval time.Duration
}

// OptionsFrom builds controller options from the loaded configuration.
func OptionsFrom(cfg *config.Config, scratchDir string) Options {
	return Options{
		DeviceDir:          cfg.Agent.DeviceDir,
		ScratchDir:         scratchDir,
		ReadyInterval:      cfg.Agent.ReadyInterval,
		ReadyAttempts:      cfg.Agent.ReadyAttempts,
		CompletionInterval: cfg.Profiling.CompletionInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.DeviceDir == "" {
		o.DeviceDir = constants.DefaultDeviceDir
	}
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = constants.DefaultReadyPollInterval
	}
	if o.ReadyAttempts <= 0 {
		o.ReadyAttempts = constants.DefaultReadyAttempts
	}
	if o.CompletionInterval <= 0 {
		o.CompletionInterval = constants.DefaultCompletionPollInterval
	}
	return o
}

func (c ProfilingConfig) String() string {
	return fmt.Sprintf("%s (%s, port %d)", c.PackageName, c.Mode(), c.ServicePort)
}
