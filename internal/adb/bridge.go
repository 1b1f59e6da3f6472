package adb

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/constants"
	"github.com/tracehelper/tracehelper/internal/device"
	"github.com/tracehelper/tracehelper/internal/poll"
)

// Options tunes the adb transport. Zero fields take defaults.
type Options struct {
	// ConnectAttempts and ConnectInterval bound device listing retries
	// while the adb server starts.
	ConnectAttempts int
	ConnectInterval time.Duration

	// SettleAttempts and SettleInterval bound the wait for a device-side
	// trace file to stop growing.
	SettleAttempts int
	SettleInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = constants.DefaultConnectAttempts
	}
	if o.ConnectInterval <= 0 {
		o.ConnectInterval = constants.DefaultConnectPollInterval
	}
	if o.SettleAttempts <= 0 {
		o.SettleAttempts = constants.DefaultTraceSettleAttempts
	}
	if o.SettleInterval <= 0 {
		o.SettleInterval = constants.DefaultCompletionPollInterval
	}
	return o
}

// DeviceEntry is one line of the adb device listing.
type DeviceEntry struct {
	Serial string
	State  string
}

// Bridge lists devices known to the adb server.
type Bridge struct {
	runner Runner
	opts   Options
	logger zerolog.Logger
}

var _ device.Bridge = (*Bridge)(nil)

// NewBridge creates a bridge over runner.
func NewBridge(runner Runner, opts Options, logger zerolog.Logger) *Bridge {
	return &Bridge{runner: runner, opts: opts.withDefaults(), logger: logger}
}

// List returns every device the adb server reports, whatever its state.
// The first listing may start the adb server; failures are retried with a
// constant delay.
func (b *Bridge) List(ctx context.Context) ([]DeviceEntry, error) {
	var out []byte
	err := poll.Retry(ctx, poll.Backoff{
		MaxRetries: b.opts.ConnectAttempts,
		Initial:    b.opts.ConnectInterval,
		Max:        b.opts.ConnectInterval,
	}, func() error {
		var err error
		out, err = b.runner.Output(ctx, "devices")
		if err != nil {
			b.logger.Debug().Err(err).Msg("Device listing failed, retrying")
		}
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// Devices implements device.Bridge. Only devices in the "device" state,
// that is online and authorized, are returned.
func (b *Bridge) Devices(ctx context.Context) ([]device.Device, error) {
	entries, err := b.List(ctx)
	if err != nil {
		return nil, err
	}

	var devices []device.Device
	for _, e := range entries {
		if e.State != "device" {
			b.logger.Debug().Str("serial", e.Serial).Str("state", e.State).Msg("Skipping device")
			continue
		}
		devices = append(devices, NewDevice(e.Serial, b.runner, b.opts, b.logger))
	}
	return devices, nil
}

// parseDevices reads the output of "adb devices".
func parseDevices(out []byte) []DeviceEntry {
	var entries []DeviceEntry
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		entries = append(entries, DeviceEntry{Serial: fields[0], State: fields[1]})
	}
	return entries
}
