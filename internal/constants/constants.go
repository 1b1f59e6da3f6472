// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".tracehelper"

	// DefaultADBPath is resolved through $PATH when no explicit adb binary is given.
	DefaultADBPath = "adb"

	// AgentBinaryName is the agent executable inside every bundle ABI directory.
	AgentBinaryName = "perfd"

	// AgentBundlePrefix is the path prefix of agent entries in a bundle archive.
	AgentBundlePrefix = "perfd/"

	// AgentConfigFileName is the device-side name of the serialized agent configuration.
	AgentConfigFileName = "agent.config"

	// DefaultDeviceDir is where the agent and its configuration live on the device.
	DefaultDeviceDir = "/data/local/tmp/perfd/"

	// DefaultOutputFile is the local trace artifact written after a session.
	DefaultOutputFile = "out.trace"

	// ReadinessMarker prefixes the agent's first output line once its socket is bound.
	ReadinessMarker = "Server listening on"

	// ChmodBadMode is the toybox/toolbox failure text for unsupported symbolic modes.
	ChmodBadMode = "Bad mode"

	// ServiceSocketName is the abstract socket the agent exposes to the app.
	ServiceSocketName = "@AndroidStudioProfiler"
)
