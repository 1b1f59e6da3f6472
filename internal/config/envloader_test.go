package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Config(t *testing.T) {
	envVars := map[string]string{
		"TRACEHELPER_ADB_PATH":          "/opt/android/platform-tools/adb",
		"TRACEHELPER_DEVICE_SERIAL":     "emulator-5554",
		"TRACEHELPER_AGENT_PORT":        "23456",
		"TRACEHELPER_READY_INTERVAL":    "250ms",
		"TRACEHELPER_SAMPLING_INTERVAL": "0",
		"TRACEHELPER_OUTPUT":            "/tmp/app.trace",
		"TRACEHELPER_LOG_PRETTY":        "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg := DefaultConfig()
	require.NoError(t, LoadFromEnv(cfg))

	assert.Equal(t, "/opt/android/platform-tools/adb", cfg.ADB.Path)
	assert.Equal(t, "emulator-5554", cfg.ADB.Serial)
	assert.Equal(t, 23456, cfg.Agent.ServicePort)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.ReadyInterval)
	assert.Equal(t, 0, cfg.Profiling.SamplingInterval)
	assert.Equal(t, "/tmp/app.trace", cfg.Profiling.Output)
	assert.False(t, cfg.Logging.Pretty)

	// Untouched fields keep their defaults.
	assert.Equal(t, 10, cfg.Agent.ReadyAttempts)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{"invalid integer", "TRACEHELPER_AGENT_PORT", "not-a-port"},
		{"invalid duration", "TRACEHELPER_READY_INTERVAL", "soon"},
		{"invalid boolean", "TRACEHELPER_LOG_PRETTY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			err := LoadFromEnv(DefaultConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.envVar)
		})
	}
}

func TestLoadFromEnv_UnsupportedField(t *testing.T) {
	type withSlice struct {
		ABIs []string `env:"TRACEHELPER_TEST_ABIS"`
	}
	t.Setenv("TRACEHELPER_TEST_ABIS", "arm64-v8a")

	err := LoadFromEnv(&withSlice{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type slice")
}

func TestLoadFromEnv_NilAndNonStruct(t *testing.T) {
	var cfg *Config
	assert.NoError(t, LoadFromEnv(cfg))
	assert.NoError(t, LoadFromEnv(42))
}
