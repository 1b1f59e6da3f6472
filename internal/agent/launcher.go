package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/constants"
	"github.com/tracehelper/tracehelper/internal/device"
	"github.com/tracehelper/tracehelper/internal/poll"
)

// Readiness is the result of waiting for a launched agent.
type Readiness int

const (
	ReadinessReady Readiness = iota
	ReadinessFailed
	ReadinessTimedOut
	ReadinessInterrupted
)

func (r Readiness) String() string {
	switch r {
	case ReadinessReady:
		return "ready"
	case ReadinessFailed:
		return "failed"
	case ReadinessTimedOut:
		return "timed-out"
	case ReadinessInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

var (
	errUnexpectedOutput = errors.New("unexpected agent output")
	errTaskExited       = errors.New("agent exited")
)

// Task is a running agent process. Its output is consumed on a background
// goroutine; the ready and failed flags are the only state shared with
// the caller.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	ready  atomic.Bool
	failed atomic.Bool

	mu      sync.Mutex
	failure string
	err     error

	once sync.Once
}

// Ready reports whether the agent printed its readiness marker.
func (t *Task) Ready() bool { return t.ready.Load() }

// Failed reports whether the agent printed anything other than the
// readiness marker before becoming ready, or exited before it.
func (t *Task) Failed() bool { return t.failed.Load() }

// Exited reports whether the output stream has ended.
func (t *Task) Exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Failure returns the reason recorded when the task failed.
func (t *Task) Failure() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Err returns the shell error once the task has exited.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Terminate stops the agent process and waits for the output stream to
// end. Safe to call more than once.
func (t *Task) Terminate() {
	t.once.Do(t.cancel)
	<-t.done
}

func (t *Task) fail(reason string) {
	t.mu.Lock()
	if t.failure == "" {
		t.failure = reason
	}
	t.mu.Unlock()
	t.failed.Store(true)
}

// readinessWriter classifies agent output. Until readiness, each chunk
// must start with the marker; the first chunk that does not marks the
// task failed.
type readinessWriter struct {
	task   *Task
	marker string
	logger zerolog.Logger
}

func (w *readinessWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))

	if w.task.Ready() {
		if line != "" {
			w.logger.Debug().Str("output", line).Msg("Agent output")
		}
		return len(p), nil
	}

	if strings.HasPrefix(string(p), w.marker) {
		w.logger.Debug().Str("output", line).Msg("Agent ready")
		w.task.ready.Store(true)
		return len(p), nil
	}

	w.task.fail(line)
	return 0, errUnexpectedOutput
}

// Launcher starts deployed agents and waits for them to become ready.
type Launcher struct {
	marker string
	logger zerolog.Logger
}

// NewLauncher creates a launcher expecting the standard readiness marker.
func NewLauncher(logger zerolog.Logger) *Launcher {
	return &Launcher{marker: constants.ReadinessMarker, logger: logger}
}

// Launch starts the agent described by dep in the background. The task
// keeps the values of ctx but not its cancellation; stop it with
// Terminate.
func (l *Launcher) Launch(ctx context.Context, dev device.Device, dep *Deployment) *Task {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &Task{cancel: cancel, done: make(chan struct{})}

	cmd := dep.LaunchCommand()
	w := &readinessWriter{task: t, marker: l.marker, logger: l.logger}

	l.logger.Debug().Str("command", cmd).Msg("Launching agent")

	go func() {
		defer close(t.done)

		err := dev.Shell(taskCtx, cmd, w)

		t.mu.Lock()
		t.err = err
		t.mu.Unlock()

		if !t.Ready() {
			reason := "agent exited before becoming ready"
			if err != nil && !errors.Is(err, errUnexpectedOutput) && taskCtx.Err() == nil {
				reason = fmt.Sprintf("%s: %v", reason, err)
			}
			t.fail(reason)
		} else if err != nil && taskCtx.Err() == nil {
			l.logger.Warn().Err(err).Msg("Agent exited")
		}
	}()

	return t
}

// AwaitReady polls t every interval, up to attempts times, for readiness.
// A task that fails or exits first yields ReadinessFailed. Cancelling ctx
// terminates the task and yields ReadinessInterrupted.
func (l *Launcher) AwaitReady(ctx context.Context, t *Task, interval time.Duration, attempts int) Readiness {
	if interval <= 0 {
		interval = constants.DefaultReadyPollInterval
	}
	if attempts <= 0 {
		attempts = constants.DefaultReadyAttempts
	}

	err := poll.Until(ctx, poll.Config{Interval: interval, MaxAttempts: attempts}, func() (bool, error) {
		if t.Ready() {
			return true, nil
		}
		if t.Failed() || t.Exited() {
			return false, errTaskExited
		}
		return false, nil
	})

	switch {
	case err == nil:
		return ReadinessReady
	case errors.Is(err, errTaskExited):
		l.logger.Debug().Str("reason", t.Failure()).Msg("Agent failed to start")
		return ReadinessFailed
	case errors.Is(err, poll.ErrExhausted):
		return ReadinessTimedOut
	default:
		l.Terminate(t)
		return ReadinessInterrupted
	}
}

// Terminate stops t. A nil task is ignored.
func (l *Launcher) Terminate(t *Task) {
	if t == nil {
		return
	}
	t.Terminate()
	l.logger.Debug().Msg("Agent task terminated")
}
