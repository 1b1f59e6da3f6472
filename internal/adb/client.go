package adb

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/device"
	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/poll"
)

const (
	// traceDir is where the app writes traces through the activity manager.
	traceDir = "/data/local/tmp"

	// collectTimeout bounds trace retrieval after a stop command.
	collectTimeout = 2 * time.Minute
)

// Client profiles an app process through the activity manager
// ("am profile"). The trace is written to a device file and read back
// once the stop command has been issued.
type Client struct {
	dev    *Device
	pkg    string
	pid    int
	logger zerolog.Logger

	mu        sync.Mutex
	status    device.ProfilingStatus
	handler   device.ProfilingHandler
	tracePath string
}

var _ device.Client = (*Client)(nil)

func newClient(d *Device, pkg string, pid int) *Client {
	return &Client{
		dev:    d,
		pkg:    pkg,
		pid:    pid,
		logger: d.logger.With().Str("package", pkg).Int("pid", pid).Logger(),
	}
}

// PackageName implements device.Client.
func (c *Client) PackageName() string { return c.pkg }

// ProfilingStatus implements device.Client. The activity manager has no
// status query; the status reflects the commands issued through c.
func (c *Client) ProfilingStatus(context.Context) (device.ProfilingStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

// SetProfilingHandler implements device.Client.
func (c *Client) SetProfilingHandler(h device.ProfilingHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// StartSamplingProfiler implements device.Client.
func (c *Client) StartSamplingProfiler(ctx context.Context, interval time.Duration) error {
	micros := interval.Microseconds()
	if micros < 1 {
		micros = 1
	}
	return c.start(ctx, device.StatusSamplerOn, "--sampling", strconv.FormatInt(micros, 10))
}

// StartMethodTracer implements device.Client.
func (c *Client) StartMethodTracer(ctx context.Context) error {
	return c.start(ctx, device.StatusTracerOn)
}

// StopSamplingProfiler implements device.Client.
func (c *Client) StopSamplingProfiler(ctx context.Context) error {
	return c.stop(ctx)
}

// StopMethodTracer implements device.Client.
func (c *Client) StopMethodTracer(ctx context.Context) error {
	return c.stop(ctx)
}

func (c *Client) start(ctx context.Context, status device.ProfilingStatus, flags ...string) error {
	tracePath := path.Join(traceDir, fmt.Sprintf("%s-%d.trace", c.pkg, time.Now().UnixNano()))

	args := append([]string{"shell", "am", "profile", "start"}, flags...)
	args = append(args, c.pkg, tracePath)

	out, err := c.dev.output(ctx, args...)
	if err != nil {
		return err
	}
	if msg, failed := amFailure(out); failed {
		return fmt.Errorf("am profile start: %s", msg)
	}

	c.mu.Lock()
	c.status = status
	c.tracePath = tracePath
	c.mu.Unlock()

	c.logger.Debug().Str("path", tracePath).Stringer("status", status).Msg("Profiling started")
	return nil
}

// stop issues the stop command and collects the trace on a separate
// goroutine, reporting the result to the installed handler.
func (c *Client) stop(ctx context.Context) error {
	out, err := c.dev.output(ctx, "shell", "am", "profile", "stop", c.pkg)
	if err != nil {
		return err
	}
	if msg, failed := amFailure(out); failed {
		return fmt.Errorf("am profile stop: %s", msg)
	}

	c.mu.Lock()
	c.status = device.StatusOff
	tracePath := c.tracePath
	c.tracePath = ""
	c.mu.Unlock()

	collectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), collectTimeout)
	go func() {
		defer cancel()
		c.collect(collectCtx, tracePath)
	}()
	return nil
}

func (c *Client) collect(ctx context.Context, tracePath string) {
	if tracePath == "" {
		c.notifyEndFailure("no trace file was requested")
		return
	}
	defer errs.BestEffort(c.logger, "remove device trace", func() error {
		_, err := c.dev.output(context.WithoutCancel(ctx), "shell", "rm", "-f", tracePath)
		return err
	})

	size, err := c.waitForTrace(ctx, tracePath)
	if err != nil {
		c.notifyEndFailure(fmt.Sprintf("trace %s not written: %v", tracePath, err))
		return
	}

	data, err := c.dev.readFile(ctx, tracePath)
	if err != nil {
		c.notifyEndFailure(fmt.Sprintf("cannot read %s: %v", tracePath, err))
		return
	}
	if int64(len(data)) != size {
		c.notifyEndFailure(fmt.Sprintf("read %d bytes of %s, expected %d", len(data), tracePath, size))
		return
	}

	c.logger.Debug().Str("path", tracePath).Int("bytes", len(data)).Msg("Trace collected")

	if h := c.currentHandler(); h != nil {
		h.OnSuccessData(data, c)
	}
}

// waitForTrace polls the trace size until two consecutive reads agree on
// a non-zero size. A size still changing when the budget runs out is an
// error: the app has not finished writing.
func (c *Client) waitForTrace(ctx context.Context, tracePath string) (int64, error) {
	var last int64 = -1
	err := poll.Until(ctx, poll.Config{
		Interval:    c.dev.opts.SettleInterval,
		MaxAttempts: c.dev.opts.SettleAttempts,
	}, func() (bool, error) {
		size, err := c.dev.fileSize(ctx, tracePath)
		if err != nil {
			return false, nil
		}
		settled := size > 0 && size == last
		last = size
		return settled, nil
	})
	if err != nil {
		if last > 0 && errors.Is(err, poll.ErrExhausted) {
			return 0, fmt.Errorf("size still changing at %d bytes: %w", last, err)
		}
		return 0, err
	}
	return last, nil
}

func (c *Client) notifyEndFailure(msg string) {
	c.logger.Debug().Str("reason", msg).Msg("Trace collection failed")
	if h := c.currentHandler(); h != nil {
		h.OnEndFailure(c, msg)
	}
}

func (c *Client) currentHandler() device.ProfilingHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

// amFailure detects error reports the activity manager prints while still
// exiting with status zero.
func amFailure(out []byte) (string, bool) {
	text := strings.TrimSpace(string(out))
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Error") || strings.Contains(line, "Exception") {
			return line, true
		}
	}
	return "", false
}
