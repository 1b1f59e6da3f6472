package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a session failure.
//
// A Kind is itself an error so callers can match with errors.Is:
//
//	if errors.Is(err, errors.KindAlreadyStopped) { ... }
type Kind int

const (
	KindUnknown Kind = iota
	KindDeviceUnavailable
	KindAgentNotFound
	KindDeployFailed
	KindConfigPushFailed
	KindLaunchFailed
	KindForwardSetupFailed
	KindClientNotRunning
	KindSessionConflict
	KindStartFailed
	KindAlreadyStopped
	KindStopFailed
	KindSaveFailed
	KindUnsupported
	KindInterrupted
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindDeviceUnavailable:  "device unavailable",
	KindAgentNotFound:      "agent not found",
	KindDeployFailed:       "deploy failed",
	KindConfigPushFailed:   "config push failed",
	KindLaunchFailed:       "launch failed",
	KindForwardSetupFailed: "forward setup failed",
	KindClientNotRunning:   "client not running",
	KindSessionConflict:    "session conflict",
	KindStartFailed:        "start failed",
	KindAlreadyStopped:     "already stopped",
	KindStopFailed:         "stop failed",
	KindSaveFailed:         "save failed",
	KindUnsupported:        "unsupported",
	KindInterrupted:        "interrupted",
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error implements the error interface.
func (k Kind) Error() string {
	return k.String()
}

// Error is a classified failure carrying the operation that failed,
// a message for the user and, optionally, the underlying transport error.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of this error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if stderrors.As(err, &k) {
		return k
	}
	return KindUnknown
}
