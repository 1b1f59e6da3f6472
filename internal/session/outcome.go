package session

import "fmt"

// OutcomeKind classifies how a profiling session ended.
type OutcomeKind int

const (
	// OutcomeSaved carries trace bytes, or a device-side path to them.
	OutcomeSaved OutcomeKind = iota
	// OutcomeUnsupported means the device handed back a path the host
	// cannot fetch.
	OutcomeUnsupported
	OutcomeStartFailed
	OutcomeStopFailed
	OutcomeInterrupted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSaved:
		return "saved"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeStartFailed:
		return "start-failed"
	case OutcomeStopFailed:
		return "stop-failed"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a session. Exactly one is produced per
// stop.
type Outcome struct {
	Kind OutcomeKind

	// Data holds the trace for a Saved outcome delivered in memory.
	Data []byte
	// RemotePath is set instead of Data when the device kept the trace.
	RemotePath string
	// Message describes failures.
	Message string
}

// Saved returns an outcome carrying trace bytes.
func Saved(data []byte) Outcome {
	if data == nil {
		data = []byte{}
	}
	return Outcome{Kind: OutcomeSaved, Data: data}
}

// SavedAt returns an outcome pointing at a trace left on the device.
func SavedAt(remotePath string) Outcome {
	return Outcome{Kind: OutcomeSaved, RemotePath: remotePath}
}

// StartFailed returns the outcome of a start command the device rejected
// after acknowledging it.
func StartFailed(msg string) Outcome {
	return Outcome{Kind: OutcomeStartFailed, Message: msg}
}

// StopFailed returns the outcome of a failed trace retrieval.
func StopFailed(msg string) Outcome {
	return Outcome{Kind: OutcomeStopFailed, Message: msg}
}

// Interrupted returns the outcome of a cancelled wait.
func Interrupted() Outcome {
	return Outcome{Kind: OutcomeInterrupted, Message: "interrupted"}
}

func (o Outcome) String() string {
	switch {
	case o.Kind == OutcomeSaved && o.RemotePath != "":
		return fmt.Sprintf("saved (device path %s)", o.RemotePath)
	case o.Kind == OutcomeSaved:
		return fmt.Sprintf("saved (%d bytes)", len(o.Data))
	case o.Message != "":
		return fmt.Sprintf("%s: %s", o.Kind, o.Message)
	default:
		return o.Kind.String()
	}
}
