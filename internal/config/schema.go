package config

import "time"

// SchemaVersion is the current config schema version.
const SchemaVersion = "1"

// Config is the tracehelper configuration (~/.tracehelper/config.yaml).
//
// Values are layered: defaults, then the file, then environment variables,
// then command-line flags.
type Config struct {
	Version   string          `yaml:"version"`
	ADB       ADBConfig       `yaml:"adb"`
	Agent     AgentConfig     `yaml:"agent"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ADBConfig configures the device transport.
type ADBConfig struct {
	// Path is the adb executable. A bare name is resolved through $PATH.
	Path string `yaml:"path" env:"TRACEHELPER_ADB_PATH"`
	// Serial selects a device. Empty selects the first connected device.
	Serial string `yaml:"serial,omitempty" env:"TRACEHELPER_DEVICE_SERIAL"`
	// ConnectAttempts bounds device listing retries while the adb server starts.
	ConnectAttempts int `yaml:"connect_attempts" env:"TRACEHELPER_CONNECT_ATTEMPTS"`
	// ConnectInterval is the delay between device listing retries.
	ConnectInterval time.Duration `yaml:"connect_interval" env:"TRACEHELPER_CONNECT_INTERVAL"`
}

// AgentConfig configures deployment and launch of the on-device agent.
type AgentConfig struct {
	// Bundle is a directory or archive holding <abi>/perfd entries.
	// Empty searches the default locations.
	Bundle string `yaml:"bundle,omitempty" env:"TRACEHELPER_AGENT_BUNDLE"`
	// DeviceDir is the device directory the agent is deployed to.
	DeviceDir string `yaml:"device_dir" env:"TRACEHELPER_DEVICE_DIR"`
	// ServicePort is the device-side port the agent listens on.
	ServicePort int `yaml:"service_port" env:"TRACEHELPER_AGENT_PORT"`
	// ReadyAttempts and ReadyInterval bound the readiness poll.
	ReadyAttempts int           `yaml:"ready_attempts" env:"TRACEHELPER_READY_ATTEMPTS"`
	ReadyInterval time.Duration `yaml:"ready_interval" env:"TRACEHELPER_READY_INTERVAL"`
}

// ProfilingConfig holds session defaults.
type ProfilingConfig struct {
	// SamplingInterval is in microseconds; zero selects instrumented tracing.
	SamplingInterval int `yaml:"sampling_interval_us" env:"TRACEHELPER_SAMPLING_INTERVAL"`
	// Output is the local trace file path.
	Output string `yaml:"output" env:"TRACEHELPER_OUTPUT"`
	// CompletionInterval is the tick of the wait for the trace after stop.
	CompletionInterval time.Duration `yaml:"completion_interval" env:"TRACEHELPER_COMPLETION_INTERVAL"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"TRACEHELPER_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"TRACEHELPER_LOG_PRETTY"`
}
