// Package session drives one profiling session against one device: deploy
// the agent, launch it, forward its port, start method profiling on the
// target app, and on stop collect the trace and write it to disk.
//
// A Controller runs at most one session at a time. Whatever way a session
// ends, the agent task is terminated and the port forward released.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/agent"
	"github.com/tracehelper/tracehelper/internal/device"
	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/forward"
)

// cleanupTimeout bounds teardown calls made after the session context is
// gone.
const cleanupTimeout = 5 * time.Second

// SessionInfo describes the current or last session.
type SessionInfo struct {
	ID         string
	Serial     string
	Package    string
	Mode       Mode
	ABI        string
	LocalPort  int
	RemotePort int
	StartedAt  time.Time
}

// Controller orchestrates profiling sessions on a device.
type Controller struct {
	dev      device.Device
	selector *agent.Selector
	deployer *agent.Deployer
	launcher *agent.Launcher
	forwards *forward.Manager
	bridge   *CompletionBridge
	writer   *Writer
	opts     Options
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64 // bumped per session and on Terminate
	cancel  context.CancelFunc
	cfg     ProfilingConfig
	info    SessionInfo
	task    *agent.Task
	binding *forward.Binding
	client  device.Client
}

// NewController creates a controller for dev, taking agent binaries from
// catalog.
func NewController(dev device.Device, catalog agent.Catalog, opts Options, logger zerolog.Logger) *Controller {
	opts = opts.withDefaults()
	logger = logger.With().Str("serial", dev.Serial()).Logger()

	return &Controller{
		dev:      dev,
		selector: agent.NewSelector(catalog, logger),
		deployer: agent.NewDeployer(opts.DeviceDir, opts.ScratchDir, logger),
		launcher: agent.NewLauncher(logger),
		forwards: forward.NewManager(logger),
		bridge:   NewCompletionBridge(logger),
		writer:   NewWriter(logger),
		opts:     opts,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns a description of the current or last session.
func (c *Controller) Info() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Start runs a session up to the point where the app is being profiled.
// It fails with KindSessionConflict while another session is active. On
// any failure the controller moves to StateFailed with everything it set
// up torn down.
func (c *Controller) Start(ctx context.Context, cfg ProfilingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state.Active() {
		state := c.state
		c.mu.Unlock()
		return errs.Newf(errs.KindSessionConflict, "start session", "a session is already %s", state)
	}
	c.cfg = cfg
	c.info = SessionInfo{
		ID:         uuid.NewString(),
		Serial:     c.dev.Serial(),
		Package:    cfg.PackageName,
		Mode:       cfg.Mode(),
		RemotePort: cfg.ServicePort,
	}
	c.state = StateDeploying
	c.gen++
	gen := c.gen
	sessionCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer c.release(gen, cancel)

	c.bridge.Reset()

	logger := c.logger.With().Str("session_id", c.info.ID).Str("package", cfg.PackageName).Logger()
	logger.Info().Stringer("mode", cfg.Mode()).Msg("Starting profiling session")

	if err := c.start(sessionCtx, gen, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Session failed to start")
		c.finish(ctx, gen, StateFailed)
		return err
	}
	return nil
}

// start walks the session from Deploying to Profiling. Every state change
// and every resource it hands to the controller goes through advance or
// install, which fail once Terminate has ended session gen; resources not
// yet handed over are released here.
func (c *Controller) start(ctx context.Context, gen uint64, cfg ProfilingConfig, logger zerolog.Logger) error {
	// Deploying.
	abis, err := c.dev.ABIs(ctx)
	if err != nil {
		return classify(ctx, errs.Wrap(errs.KindDeviceUnavailable, "read device ABIs", err, "cannot query device"))
	}
	sel, err := c.selector.Select(abis)
	if err != nil {
		return err
	}
	dep, err := c.deployer.Deploy(ctx, c.dev, sel)
	if err != nil {
		return classify(ctx, err)
	}
	if err := c.deployer.WriteAgentConfig(ctx, c.dev, dep, cfg.ServicePort); err != nil {
		return classify(ctx, err)
	}

	if err := c.install(gen, func() { c.info.ABI = dep.ABI }); err != nil {
		return err
	}

	// Launching.
	if err := c.advance(gen, StateLaunching); err != nil {
		return err
	}
	task := c.launcher.Launch(ctx, c.dev, dep)
	if err := c.install(gen, func() { c.task = task }); err != nil {
		c.launcher.Terminate(task)
		return err
	}

	switch r := c.launcher.AwaitReady(ctx, task, c.opts.ReadyInterval, c.opts.ReadyAttempts); r {
	case agent.ReadinessReady:
		logger.Debug().Msg("Agent ready")
	case agent.ReadinessFailed:
		return errs.Newf(errs.KindLaunchFailed, "launch agent", "agent failed to start: %s", task.Failure())
	case agent.ReadinessTimedOut:
		return errs.Newf(errs.KindLaunchFailed, "launch agent",
			"agent not ready after %d attempts", c.opts.ReadyAttempts)
	default:
		return errs.New(errs.KindInterrupted, "launch agent", "interrupted while waiting for the agent")
	}

	// Forwarding.
	if err := c.advance(gen, StateForwarding); err != nil {
		return err
	}
	localPort, err := forward.AllocateLocalPort()
	if err != nil {
		return err
	}
	binding, err := c.forwards.Establish(ctx, c.dev, localPort, cfg.ServicePort)
	if err != nil {
		return classify(ctx, err)
	}
	if err := c.install(gen, func() {
		c.binding = binding
		c.info.LocalPort = localPort
	}); err != nil {
		cleanupCtx, cancel := cleanupContext(ctx)
		defer cancel()
		c.forwards.Release(cleanupCtx, binding)
		return err
	}

	// Binding.
	if err := c.advance(gen, StateBinding); err != nil {
		return err
	}
	client, err := c.resolveClient(ctx, "start session")
	if err != nil {
		return err
	}
	status, err := client.ProfilingStatus(ctx)
	if err != nil {
		return classify(ctx, errs.Wrap(errs.KindClientNotRunning, "start session", err, "cannot query profiling status"))
	}
	if status != device.StatusOff {
		return errs.Newf(errs.KindSessionConflict, "start session",
			"the app has an ongoing profiling session (%s)", status)
	}

	if err := c.install(gen, func() { c.client = client }); err != nil {
		return err
	}
	client.SetProfilingHandler(c.bridge)

	if cfg.Mode() == ModeSampling {
		err = client.StartSamplingProfiler(ctx, cfg.Interval())
	} else {
		err = client.StartMethodTracer(ctx)
	}
	if err != nil {
		return classify(ctx, errs.Wrap(errs.KindStartFailed, "start profiling", err, "the app rejected the start command"))
	}

	// Profiling.
	if err := c.install(gen, func() {
		c.state = StateProfiling
		c.info.StartedAt = time.Now()
	}); err != nil {
		client.SetProfilingHandler(nil)
		return err
	}

	logger.Info().
		Int("local_port", localPort).
		Int("remote_port", cfg.ServicePort).
		Str("abi", dep.ABI).
		Msg("Profiling started")
	return nil
}

// Stop ends the profiling session, waits for the trace and writes it to
// the configured output path. It fails with KindAlreadyStopped when no
// session is profiling, or when the app no longer reports an active
// profiler. Teardown runs regardless of the result.
//
// A trace that reached the host but could not be written is returned
// together with the KindSaveFailed error.
func (c *Controller) Stop(ctx context.Context) (Outcome, error) {
	const op = "stop session"

	c.mu.Lock()
	if c.state != StateProfiling {
		state := c.state
		c.mu.Unlock()
		return Outcome{}, errs.Newf(errs.KindAlreadyStopped, op, "no session is profiling (state %s)", state)
	}
	c.state = StateStopping
	gen := c.gen
	stopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	cfg := c.cfg
	logger := c.logger.With().Str("session_id", c.info.ID).Str("package", cfg.PackageName).Logger()
	c.mu.Unlock()
	defer c.release(gen, cancel)

	o, err := c.stop(stopCtx, cfg, logger)
	if err != nil && !traceCollected(err) {
		logger.Error().Err(err).Msg("Session stopped with error")
		c.finish(ctx, gen, StateFailed)
		return o, err
	}

	c.finish(ctx, gen, StateFinished)
	if err != nil {
		logger.Error().Err(err).Msg("Trace not saved")
		return o, err
	}
	logger.Info().Stringer("outcome", o).Msg("Session finished")
	return o, nil
}

func (c *Controller) stop(ctx context.Context, cfg ProfilingConfig, logger zerolog.Logger) (Outcome, error) {
	const op = "stop session"

	client, err := c.resolveClient(ctx, op)
	if err != nil {
		return Outcome{}, err
	}

	// A start failure reported after the start command returned is only
	// seen here.
	if o, ok := c.bridge.Peek(); ok && o.Kind == OutcomeStartFailed {
		return o, errs.New(errs.KindStartFailed, op, o.Message)
	}

	status, err := client.ProfilingStatus(ctx)
	if err != nil {
		return Outcome{}, classify(ctx, errs.Wrap(errs.KindClientNotRunning, op, err, "cannot query profiling status"))
	}
	if status == device.StatusOff {
		return Outcome{}, errs.New(errs.KindAlreadyStopped, op, "the app is not being profiled")
	}

	c.bridge.Reset()

	if cfg.Mode() == ModeSampling {
		err = client.StopSamplingProfiler(ctx)
	} else {
		err = client.StopMethodTracer(ctx)
	}
	if err != nil {
		return Outcome{}, classify(ctx, errs.Wrap(errs.KindStopFailed, op, err, "the app rejected the stop command"))
	}

	logger.Debug().Msg("Waiting for trace")
	o := c.bridge.Wait(ctx, c.opts.CompletionInterval)

	switch o.Kind {
	case OutcomeSaved:
		if err := c.writer.Write(o, cfg.OutputPath); err != nil {
			if errs.KindOf(err) == errs.KindUnsupported {
				return Outcome{Kind: OutcomeUnsupported, RemotePath: o.RemotePath, Message: unsupportedPathMessage}, err
			}
			return o, err
		}
		return o, nil
	case OutcomeStartFailed:
		return o, errs.New(errs.KindStartFailed, op, o.Message)
	case OutcomeStopFailed:
		return o, errs.New(errs.KindStopFailed, op, o.Message)
	default:
		return o, errs.New(errs.KindInterrupted, op, "interrupted while waiting for the trace")
	}
}

// Terminate tears down whatever the current session set up. An active
// session moves to StateFailed and a Start or Stop still in progress
// returns KindInterrupted without touching the controller again. Calling
// Terminate with no session, or more than once, does nothing further.
func (c *Controller) Terminate() {
	c.mu.Lock()
	if c.state.Active() {
		c.state = StateFailed
		c.gen++
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.teardown(context.Background())
}

func (c *Controller) resolveClient(ctx context.Context, op string) (device.Client, error) {
	client, err := c.dev.Client(ctx, c.cfg.PackageName)
	if errors.Is(err, device.ErrClientNotFound) {
		return nil, errs.Newf(errs.KindClientNotRunning, op, "app %s is not running", c.cfg.PackageName)
	}
	if err != nil {
		return nil, classify(ctx, errs.Wrap(errs.KindClientNotRunning, op, err, "cannot resolve app "+c.cfg.PackageName))
	}
	return client, nil
}

// install runs fn under the lock while session gen is current.
func (c *Controller) install(gen uint64, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return errs.New(errs.KindInterrupted, "session", "session terminated")
	}
	fn()
	return nil
}

func (c *Controller) advance(gen uint64, s State) error {
	return c.install(gen, func() { c.state = s })
}

// release drops the cancel func of session gen once its call returns.
func (c *Controller) release(gen uint64, cancel context.CancelFunc) {
	c.mu.Lock()
	if c.gen == gen {
		c.cancel = nil
	}
	c.mu.Unlock()
	cancel()
}

// finish ends session gen in state s. A terminated session was already
// torn down by Terminate and is left alone.
func (c *Controller) finish(ctx context.Context, gen uint64, s State) {
	if c.advance(gen, s) != nil {
		return
	}
	c.teardown(ctx)
}

// teardown terminates the agent task, releases the forward and detaches
// the profiling handler. Each resource is released at most once.
func (c *Controller) teardown(ctx context.Context) {
	c.mu.Lock()
	task, binding, client := c.task, c.binding, c.client
	c.task, c.binding, c.client = nil, nil, nil
	c.mu.Unlock()

	cleanupCtx, cancel := cleanupContext(ctx)
	defer cancel()

	if client != nil {
		client.SetProfilingHandler(nil)
	}
	if task != nil {
		c.launcher.Terminate(task)
		if err := task.Err(); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug().Err(err).Msg("Agent exited with error")
		}
	}
	c.forwards.Release(cleanupCtx, binding)
}

// cleanupContext outlives ctx's cancellation, bounded by cleanupTimeout.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// traceCollected reports whether err ends a session whose profiling run
// itself completed.
func traceCollected(err error) bool {
	switch errs.KindOf(err) {
	case errs.KindSaveFailed, errs.KindUnsupported:
		return true
	default:
		return false
	}
}

// classify reports err as an interruption when ctx was cancelled.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && err != nil {
		return errs.Wrap(errs.KindInterrupted, "session", err, "interrupted")
	}
	return err
}
