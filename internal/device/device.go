// Package device defines the narrow view of a connected device that a
// profiling session needs. Transports (see package adb) implement it; the
// session only borrows a Device for its lifetime.
package device

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrClientNotFound is returned by Device.Client when no process runs for
// the requested package.
var ErrClientNotFound = errors.New("client not running")

// Bridge enumerates connected devices.
type Bridge interface {
	Devices(ctx context.Context) ([]Device, error)
}

// Device is a connected target.
type Device interface {
	// Serial returns the transport serial number.
	Serial() string

	// ABIs returns the supported instruction-set variants in the device's
	// order of preference.
	ABIs(ctx context.Context) ([]string, error)

	// Shell runs command on the device. Each chunk of output is delivered
	// with one call to out.Write; a Write error aborts the command and is
	// returned. Shell blocks until the command exits or ctx is done.
	Shell(ctx context.Context, command string, out io.Writer) error

	// Push copies a local file to a device path.
	Push(ctx context.Context, local, remote string) error

	// CreateForward forwards localPort on the host to remotePort on the device.
	CreateForward(ctx context.Context, localPort, remotePort int) error

	// RemoveForward removes a forward created by CreateForward.
	RemoveForward(ctx context.Context, localPort, remotePort int) error

	// Client resolves the running process of packageName.
	// It returns ErrClientNotFound when the app is not running.
	Client(ctx context.Context, packageName string) (Client, error)
}

// ProfilingStatus is the method profiling state a client reports.
type ProfilingStatus int

const (
	StatusOff ProfilingStatus = iota
	StatusTracerOn
	StatusSamplerOn
)

func (s ProfilingStatus) String() string {
	switch s {
	case StatusOff:
		return "off"
	case StatusTracerOn:
		return "tracer-on"
	case StatusSamplerOn:
		return "sampler-on"
	default:
		return "unknown"
	}
}

// Client is a running app process that can be profiled.
type Client interface {
	PackageName() string

	// ProfilingStatus reports whether method profiling is active.
	ProfilingStatus(ctx context.Context) (ProfilingStatus, error)

	// SetProfilingHandler installs the receiver of completion notifications.
	SetProfilingHandler(h ProfilingHandler)

	StartSamplingProfiler(ctx context.Context, interval time.Duration) error
	StopSamplingProfiler(ctx context.Context) error
	StartMethodTracer(ctx context.Context) error
	StopMethodTracer(ctx context.Context) error
}

// ProfilingHandler receives the outcome of a profiling run. Methods are
// called from a goroutine owned by the transport and must not block.
type ProfilingHandler interface {
	// OnSuccessData delivers the trace bytes.
	OnSuccessData(data []byte, c Client)
	// OnSuccessPath reports a trace left on the device (older devices).
	OnSuccessPath(remotePath string, c Client)
	// OnStartFailure reports that profiling could not start.
	OnStartFailure(c Client, message string)
	// OnEndFailure reports that profiling could not be stopped or saved.
	OnEndFailure(c Client, message string)
}
