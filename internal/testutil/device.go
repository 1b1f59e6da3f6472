package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tracehelper/tracehelper/internal/device"
)

// FakeBridge is a device.Bridge returning a fixed device list.
type FakeBridge struct {
	List []device.Device
	Err  error
}

// Devices implements device.Bridge.
func (b *FakeBridge) Devices(context.Context) ([]device.Device, error) {
	return b.List, b.Err
}

// PushedFile records one Push call together with the pushed content.
type PushedFile struct {
	Local   string
	Remote  string
	Content []byte
}

// ShellFunc intercepts a shell command. Returning handled=false falls
// through to the scripted responses.
type ShellFunc func(ctx context.Context, command string, out io.Writer) (handled bool, err error)

// FakeDevice is a scriptable in-memory device.Device.
type FakeDevice struct {
	SerialNumber  string
	SupportedABIs []string

	// ShellFunc, when set, sees every command first.
	ShellFunc ShellFunc
	// ShellOutput maps a command to the output written before it returns.
	ShellOutput map[string]string
	// ShellErrors maps a command prefix to the error it returns.
	ShellErrors map[string]error

	PushErr          error
	CreateForwardErr error
	RemoveForwardErr error

	// Clients maps package names to running processes.
	Clients map[string]*FakeClient

	mu             sync.Mutex
	commands       []string
	pushes         []PushedFile
	forwards       map[[2]int]bool
	forwardCreates int
	forwardRemoves int
}

// NewFakeDevice returns a device with the given serial and ABIs.
func NewFakeDevice(serial string, abis ...string) *FakeDevice {
	return &FakeDevice{
		SerialNumber:  serial,
		SupportedABIs: abis,
		ShellOutput:   make(map[string]string),
		ShellErrors:   make(map[string]error),
		Clients:       make(map[string]*FakeClient),
		forwards:      make(map[[2]int]bool),
	}
}

// Serial implements device.Device.
func (d *FakeDevice) Serial() string { return d.SerialNumber }

// ABIs implements device.Device.
func (d *FakeDevice) ABIs(context.Context) ([]string, error) {
	return append([]string(nil), d.SupportedABIs...), nil
}

// Shell implements device.Device.
func (d *FakeDevice) Shell(ctx context.Context, command string, out io.Writer) error {
	d.mu.Lock()
	d.commands = append(d.commands, command)
	d.mu.Unlock()

	if d.ShellFunc != nil {
		if handled, err := d.ShellFunc(ctx, command, out); handled {
			return err
		}
	}

	for prefix, err := range d.ShellErrors {
		if strings.HasPrefix(command, prefix) {
			return err
		}
	}

	if output, ok := d.ShellOutput[command]; ok && out != nil {
		if _, err := out.Write([]byte(output)); err != nil {
			return err
		}
	}
	return nil
}

// Push implements device.Device. The local file is read at push time so
// callers may delete it afterwards.
func (d *FakeDevice) Push(_ context.Context, local, remote string) error {
	if d.PushErr != nil {
		return d.PushErr
	}
	content, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("push %s: %w", local, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, PushedFile{Local: local, Remote: remote, Content: content})
	return nil
}

// CreateForward implements device.Device.
func (d *FakeDevice) CreateForward(_ context.Context, localPort, remotePort int) error {
	if d.CreateForwardErr != nil {
		return d.CreateForwardErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forwardCreates++
	d.forwards[[2]int{localPort, remotePort}] = true
	return nil
}

// RemoveForward implements device.Device.
func (d *FakeDevice) RemoveForward(_ context.Context, localPort, remotePort int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forwardRemoves++
	if d.RemoveForwardErr != nil {
		return d.RemoveForwardErr
	}
	key := [2]int{localPort, remotePort}
	if !d.forwards[key] {
		return fmt.Errorf("listener 'tcp:%d' not found", localPort)
	}
	delete(d.forwards, key)
	return nil
}

// Client implements device.Device.
func (d *FakeDevice) Client(_ context.Context, packageName string) (device.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.Clients[packageName]
	if !ok {
		return nil, device.ErrClientNotFound
	}
	return c, nil
}

// AddClient registers a running process for packageName.
func (d *FakeDevice) AddClient(packageName string) *FakeClient {
	c := &FakeClient{Package: packageName}
	d.mu.Lock()
	d.Clients[packageName] = c
	d.mu.Unlock()
	return c
}

// RemoveClient simulates the app process exiting.
func (d *FakeDevice) RemoveClient(packageName string) {
	d.mu.Lock()
	delete(d.Clients, packageName)
	d.mu.Unlock()
}

// Commands returns the shell commands run so far.
func (d *FakeDevice) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// Pushes returns the files pushed so far.
func (d *FakeDevice) Pushes() []PushedFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PushedFile(nil), d.pushes...)
}

// ActiveForwards returns the number of forwards currently installed.
func (d *FakeDevice) ActiveForwards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.forwards)
}

// ForwardCalls returns how many forwards were created and removed.
func (d *FakeDevice) ForwardCalls() (created, removed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forwardCreates, d.forwardRemoves
}

// FakeClient is a scriptable device.Client.
type FakeClient struct {
	Package string

	StartErr error
	StopErr  error

	// OnStop runs on its own goroutine after a successful stop command.
	// Nil delivers TraceData through OnSuccessData.
	OnStop    func(c *FakeClient, h device.ProfilingHandler)
	TraceData []byte

	mu       sync.Mutex
	status   device.ProfilingStatus
	handler  device.ProfilingHandler
	calls    []string
	interval time.Duration
}

// PackageName implements device.Client.
func (c *FakeClient) PackageName() string { return c.Package }

// ProfilingStatus implements device.Client.
func (c *FakeClient) ProfilingStatus(context.Context) (device.ProfilingStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

// SetStatus overrides the reported profiling status.
func (c *FakeClient) SetStatus(s device.ProfilingStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// SetProfilingHandler implements device.Client.
func (c *FakeClient) SetProfilingHandler(h device.ProfilingHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Handler returns the installed profiling handler.
func (c *FakeClient) Handler() device.ProfilingHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

// StartSamplingProfiler implements device.Client.
func (c *FakeClient) StartSamplingProfiler(_ context.Context, interval time.Duration) error {
	return c.start(fmt.Sprintf("start-sampling:%s", interval), device.StatusSamplerOn, interval)
}

// StartMethodTracer implements device.Client.
func (c *FakeClient) StartMethodTracer(context.Context) error {
	return c.start("start-tracer", device.StatusTracerOn, 0)
}

// StopSamplingProfiler implements device.Client.
func (c *FakeClient) StopSamplingProfiler(context.Context) error {
	return c.stop("stop-sampling")
}

// StopMethodTracer implements device.Client.
func (c *FakeClient) StopMethodTracer(context.Context) error {
	return c.stop("stop-tracer")
}

// Calls returns the profiling commands issued so far.
func (c *FakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Interval returns the sampling interval of the last sampling start.
func (c *FakeClient) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *FakeClient) start(call string, status device.ProfilingStatus, interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	if c.StartErr != nil {
		return c.StartErr
	}
	c.status = status
	c.interval = interval
	return nil
}

func (c *FakeClient) stop(call string) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	if c.StopErr != nil {
		c.mu.Unlock()
		return c.StopErr
	}
	c.status = device.StatusOff
	h := c.handler
	onStop := c.OnStop
	data := c.TraceData
	c.mu.Unlock()

	if h == nil {
		return nil
	}
	go func() {
		if onStop != nil {
			onStop(c, h)
			return
		}
		h.OnSuccessData(data, c)
	}()
	return nil
}
