package adb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/device"
)

// Device is a device reached through the adb client.
type Device struct {
	serial string
	runner Runner
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

var _ device.Device = (*Device)(nil)

// NewDevice creates a handle for the device with the given serial.
func NewDevice(serial string, runner Runner, opts Options, logger zerolog.Logger) *Device {
	return &Device{
		serial:  serial,
		runner:  runner,
		opts:    opts.withDefaults(),
		logger:  logger.With().Str("serial", serial).Logger(),
		clients: make(map[string]*Client),
	}
}

// Serial implements device.Device.
func (d *Device) Serial() string { return d.serial }

// ABIs implements device.Device. Devices without an ABI list property
// report their primary and secondary ABI instead.
func (d *Device) ABIs(ctx context.Context) ([]string, error) {
	list, err := d.getprop(ctx, "ro.product.cpu.abilist")
	if err != nil {
		return nil, err
	}

	var abis []string
	for _, abi := range strings.Split(list, ",") {
		if abi = strings.TrimSpace(abi); abi != "" {
			abis = append(abis, abi)
		}
	}
	if len(abis) > 0 {
		return abis, nil
	}

	for _, prop := range []string{"ro.product.cpu.abi", "ro.product.cpu.abi2"} {
		abi, err := d.getprop(ctx, prop)
		if err != nil {
			return nil, err
		}
		if abi != "" {
			abis = append(abis, abi)
		}
	}
	return abis, nil
}

func (d *Device) getprop(ctx context.Context, name string) (string, error) {
	out, err := d.output(ctx, "shell", "getprop", name)
	if err != nil {
		return "", fmt.Errorf("getprop %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Shell implements device.Device.
func (d *Device) Shell(ctx context.Context, command string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	return d.runner.Stream(ctx, out, d.args("shell", command)...)
}

// Push implements device.Device.
func (d *Device) Push(ctx context.Context, local, remote string) error {
	_, err := d.output(ctx, "push", local, remote)
	return err
}

// CreateForward implements device.Device.
func (d *Device) CreateForward(ctx context.Context, localPort, remotePort int) error {
	_, err := d.output(ctx, "forward", tcp(localPort), tcp(remotePort))
	return err
}

// RemoveForward implements device.Device.
func (d *Device) RemoveForward(ctx context.Context, localPort, _ int) error {
	_, err := d.output(ctx, "forward", "--remove", tcp(localPort))
	return err
}

// Client implements device.Device. The process is looked up with pidof;
// profiling state is kept per package for as long as the process id stays
// the same.
func (d *Device) Client(ctx context.Context, packageName string) (device.Client, error) {
	out, err := d.output(ctx, "shell", "pidof", packageName)
	var cmdErr *CommandError
	if err != nil && !errors.As(err, &cmdErr) {
		return nil, err
	}

	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return nil, device.ErrClientNotFound
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, device.ErrClientNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.clients[packageName]
	if !ok || c.pid != pid {
		c = newClient(d, packageName, pid)
		d.clients[packageName] = c
	}
	return c, nil
}

// fileSize returns the size of a device file.
func (d *Device) fileSize(ctx context.Context, path string) (int64, error) {
	out, err := d.output(ctx, "shell", "stat", "-c", "%s", path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
}

// readFile returns the raw contents of a device file.
func (d *Device) readFile(ctx context.Context, path string) ([]byte, error) {
	return d.output(ctx, "exec-out", "cat", path)
}

func (d *Device) output(ctx context.Context, args ...string) ([]byte, error) {
	return d.runner.Output(ctx, d.args(args...)...)
}

func (d *Device) args(args ...string) []string {
	return append([]string{"-s", d.serial}, args...)
}

func tcp(port int) string {
	return "tcp:" + strconv.Itoa(port)
}
