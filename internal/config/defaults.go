package config

import (
	"github.com/tracehelper/tracehelper/internal/constants"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		ADB: ADBConfig{
			Path:            constants.DefaultADBPath,
			ConnectAttempts: constants.DefaultConnectAttempts,
			ConnectInterval: constants.DefaultConnectPollInterval,
		},
		Agent: AgentConfig{
			DeviceDir:     constants.DefaultDeviceDir,
			ServicePort:   constants.DefaultServicePort,
			ReadyAttempts: constants.DefaultReadyAttempts,
			ReadyInterval: constants.DefaultReadyPollInterval,
		},
		Profiling: ProfilingConfig{
			SamplingInterval:   constants.DefaultSamplingIntervalMicros,
			Output:             constants.DefaultOutputFile,
			CompletionInterval: constants.DefaultCompletionPollInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
