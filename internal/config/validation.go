package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the session cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.ADB.Path) == "" {
		problems = append(problems, "adb.path cannot be empty")
	}
	if c.ADB.ConnectAttempts <= 0 {
		problems = append(problems, "adb.connect_attempts must be positive")
	}
	if c.ADB.ConnectInterval <= 0 {
		problems = append(problems, "adb.connect_interval must be positive")
	}

	if err := ValidatePort(c.Agent.ServicePort); err != nil {
		problems = append(problems, "agent.service_port: "+err.Error())
	}
	if !strings.HasPrefix(c.Agent.DeviceDir, "/") {
		problems = append(problems, fmt.Sprintf("agent.device_dir %q must be an absolute device path", c.Agent.DeviceDir))
	}
	if c.Agent.ReadyAttempts <= 0 {
		problems = append(problems, "agent.ready_attempts must be positive")
	}
	if c.Agent.ReadyInterval <= 0 {
		problems = append(problems, "agent.ready_interval must be positive")
	}

	if c.Profiling.SamplingInterval < 0 {
		problems = append(problems, "profiling.sampling_interval_us cannot be negative")
	}
	if strings.TrimSpace(c.Profiling.Output) == "" {
		problems = append(problems, "profiling.output cannot be empty")
	}
	if c.Profiling.CompletionInterval <= 0 {
		problems = append(problems, "profiling.completion_interval must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ValidatePort checks that port is a usable TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", port)
	}
	return nil
}
