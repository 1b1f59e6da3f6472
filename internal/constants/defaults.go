package constants

import "time"

// Ports.
const (
	// DefaultServicePort is the device-side port the agent listens on.
	DefaultServicePort = 12389
)

// Profiling.
const (
	// DefaultSamplingIntervalMicros is the sampling interval; zero selects
	// instrumented tracing.
	DefaultSamplingIntervalMicros = 10

	// AgentMaxStackDepth is the allocation-tracking stack depth written
	// into the agent configuration.
	AgentMaxStackDepth = 50

	// MaxAgentBinarySize bounds extraction of an agent binary from a bundle.
	MaxAgentBinarySize = 64 << 20
)

// Intervals and budgets.
const (
	// DefaultReadyPollInterval is the tick of the agent readiness poll.
	DefaultReadyPollInterval = 100 * time.Millisecond

	// DefaultReadyAttempts bounds the agent readiness poll.
	DefaultReadyAttempts = 10

	// DefaultCompletionPollInterval is the tick of the completion wait.
	DefaultCompletionPollInterval = 100 * time.Millisecond

	// DefaultConnectPollInterval is the delay between adb device listings
	// while the adb server starts.
	DefaultConnectPollInterval = 100 * time.Millisecond

	// DefaultConnectAttempts bounds adb device listing retries.
	DefaultConnectAttempts = 10

	// DefaultTraceSettleAttempts bounds the wait for a device-side trace
	// file to stop growing after a stop command.
	DefaultTraceSettleAttempts = 50
)
