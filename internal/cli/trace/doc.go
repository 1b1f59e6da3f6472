// Package trace implements the 'tracehelper trace' command.
//
// The command runs one profiling session against an app on a connected
// device and writes the resulting method trace to a local file:
//
//	tracehelper trace com.example.app
//	tracehelper trace com.example.app --time 5 --output startup.trace
//	tracehelper trace com.example.app --interval 0     # instrumented tracing
//
// # Session
//
// The session deploys the profiler agent matching the device ABI, launches
// it, forwards a free local port to the agent's service port and starts
// method profiling on the app. A positive --interval selects sampling at
// that interval in microseconds; zero selects instrumented tracing.
//
// Profiling runs until Enter is pressed, or for --time seconds when set.
// Without a terminal on stdin, --time is required.
//
// # Interruption
//
// SIGINT or SIGTERM abandon the session: the agent is stopped and the port
// forward removed, and no trace is written.
//
// # Agent bundle
//
// Agent binaries come from a directory or zip archive holding
// perfd/<abi>/perfd entries. Unless --agent-bundle (or agent.bundle in the
// config file) names one, the bundle is searched next to the executable,
// in ~/.tracehelper and in the working directory.
package trace
