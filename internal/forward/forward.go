// Package forward manages the host-to-device TCP port forward used to
// reach the agent's service port.
package forward

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/device"
	errs "github.com/tracehelper/tracehelper/internal/errors"
)

// Binding is an installed forward from a host port to a device port.
type Binding struct {
	LocalPort  int
	RemotePort int

	dev      device.Device
	released atomic.Bool
}

// Released reports whether the binding has been released.
func (b *Binding) Released() bool { return b.released.Load() }

// AllocateLocalPort asks the OS for a free loopback port. The port is
// released before returning, so another process may claim it before the
// forward is installed.
func AllocateLocalPort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, errs.Wrap(errs.KindForwardSetupFailed, "allocate local port", err, "no free local port")
	}
	defer func() { _ = listener.Close() }()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errs.Newf(errs.KindForwardSetupFailed, "allocate local port", "unexpected address %s", listener.Addr())
	}
	return addr.Port, nil
}

// Manager tracks the single forward owned by a session.
type Manager struct {
	logger zerolog.Logger

	mu     sync.Mutex
	active *Binding
}

// NewManager creates a forward manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Establish installs a forward from localPort to remotePort on dev. Only
// one forward may be active at a time.
func (m *Manager) Establish(ctx context.Context, dev device.Device, localPort, remotePort int) (*Binding, error) {
	const op = "establish forward"

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, errs.Newf(errs.KindForwardSetupFailed, op,
			"forward tcp:%d -> tcp:%d is still active", m.active.LocalPort, m.active.RemotePort)
	}

	if err := dev.CreateForward(ctx, localPort, remotePort); err != nil {
		return nil, errs.Wrap(errs.KindForwardSetupFailed, op, err,
			fmt.Sprintf("cannot forward tcp:%d -> tcp:%d", localPort, remotePort))
	}

	b := &Binding{LocalPort: localPort, RemotePort: remotePort, dev: dev}
	m.active = b

	m.logger.Debug().
		Int("local_port", localPort).
		Int("remote_port", remotePort).
		Str("serial", dev.Serial()).
		Msg("Port forward established")
	return b, nil
}

// Release removes b. Failures are logged and swallowed; releasing a
// binding twice, or a nil binding, is a no-op.
func (m *Manager) Release(ctx context.Context, b *Binding) {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}

	m.mu.Lock()
	if m.active == b {
		m.active = nil
	}
	m.mu.Unlock()

	errs.BestEffort(m.logger, "remove port forward", func() error {
		return b.dev.RemoveForward(ctx, b.LocalPort, b.RemotePort)
	})

	m.logger.Debug().
		Int("local_port", b.LocalPort).
		Int("remote_port", b.RemotePort).
		Msg("Port forward released")
}

// Active returns the forward currently installed, or nil.
func (m *Manager) Active() *Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
