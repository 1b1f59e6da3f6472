package session

// State is a step of the session lifecycle.
//
//	Idle -> Deploying -> Launching -> Forwarding -> Binding -> Profiling -> Stopping -> Finished
//
// Any step may move to Failed. Finished and Failed accept a new Start.
type State int

const (
	StateIdle State = iota
	StateDeploying
	StateLaunching
	StateForwarding
	StateBinding
	StateProfiling
	StateStopping
	StateFinished
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateDeploying:  "deploying",
	StateLaunching:  "launching",
	StateForwarding: "forwarding",
	StateBinding:    "binding",
	StateProfiling:  "profiling",
	StateStopping:   "stopping",
	StateFinished:   "finished",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Active reports whether a session is in progress in state s.
func (s State) Active() bool {
	switch s {
	case StateIdle, StateFinished, StateFailed:
		return false
	default:
		return true
	}
}
