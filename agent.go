package solo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/solo/internal/clock"
	"github.com/arloliu/solo/internal/election"
	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/internal/metrics"
)

// Agent contends for one lease on a fixed poll interval.
//
// Each tick reads the shared lease record, then acquires, renews or yields
// with a single compare-and-swap. Leadership is only ever claimed by a tick
// whose write succeeded; every failure degrades to Follower for that tick
// and the loop keeps going.
//
// An Agent is started once. After Stop it cannot be restarted.
type Agent struct {
	cfg     Config
	elector *election.Elector
	clock   Clock
	metrics MetricsCollector
	logger  Logger

	// State management
	isLeader   atomic.Bool
	lastResult atomic.Pointer[TickResult]

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewAgent creates a new election agent.
//
// Missing configuration values are filled from DefaultConfig before
// validation. The configuration is copied; later changes to cfg have no effect.
//
// Parameters:
//   - cfg: Election configuration (Identity is required)
//   - store: Lease store shared by every contender
//   - opts: Optional logger, metrics and clock
//
// Returns:
//   - *Agent: Initialized agent, not yet started
//   - error: ErrLeaseStoreRequired or a wrapped ErrInvalidConfig
//
// Example:
//
//	cfg := solo.DefaultConfig()
//	cfg.Identity = solo.DefaultIdentity()
//	agent, err := solo.NewAgent(cfg, memory.New(), solo.WithLogger(logging.NewSlogDefault()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := agent.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Stop(context.Background())
func NewAgent(cfg Config, store LeaseStore, opts ...Option) (*Agent, error) {
	if store == nil {
		return nil, ErrLeaseStoreRequired
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &agentOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	clk := options.clock
	if clk == nil {
		clk = clock.NewReal()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	elector, err := election.New(store, cfg.electionConfig(),
		election.WithLogger(loggerInstance),
		election.WithMetrics(metricsCollector),
		election.WithClock(clk),
	)
	if err != nil {
		return nil, err
	}

	return &Agent{
		cfg:     cfg,
		elector: elector,
		clock:   clk,
		metrics: metricsCollector,
		logger:  loggerInstance,
	}, nil
}

// Start runs the first tick synchronously and then ticks in the background
// every PollInterval until Stop is called.
//
// The first tick uses ctx and is also cancelled by a concurrent Stop, which
// waits for it like any other tick. The background loop is independent of ctx.
//
// Parameters:
//   - ctx: Context for the first tick
//
// Returns:
//   - error: ErrAlreadyStarted if the agent was started before
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.ctx != nil || a.stopped {
		a.mu.Unlock()

		return ErrAlreadyStarted
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.done = make(chan struct{})
	loopCtx, done := a.ctx, a.done
	// Registered before unlocking so Stop never waits on an empty group
	// while the first tick is still running.
	a.wg.Add(1)
	a.mu.Unlock()

	a.logger.Info("starting election agent",
		"identity", a.cfg.Identity,
		"lease", a.cfg.LeaseName,
		"namespace", a.cfg.Namespace,
		"leaseDuration", a.cfg.LeaseDuration,
		"pollInterval", a.cfg.PollInterval,
	)

	tickCtx, cancelTick := context.WithCancel(ctx)
	stopTick := context.AfterFunc(loopCtx, cancelTick)
	a.Tick(tickCtx)
	stopTick()
	cancelTick()

	go a.loop(loopCtx, done)

	return nil
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
//
// With ReleaseOnStop set, a leading agent then clears the holder so a
// successor can acquire on its next tick. The agent always ends as Follower.
//
// Parameters:
//   - ctx: Bounds the wait and the release write
//
// Returns:
//   - error: ErrNotStarted, a shutdown timeout, or a release failure
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.ctx == nil || a.stopped {
		a.mu.Unlock()

		return ErrNotStarted
	}

	a.stopped = true
	a.cancel()
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("shutdown timeout exceeded, tick loop still running", "identity", a.cfg.Identity)

		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}

	var shutdownErr error
	if a.cfg.ReleaseOnStop && a.IsLeader() {
		res := a.elector.Release(ctx)
		a.lastResult.Store(&res)
		if res.Err != nil {
			shutdownErr = fmt.Errorf("leadership release failed: %w", res.Err)
		}
	}

	a.setLeader(false)
	a.logger.Info("election agent stopped", "identity", a.cfg.Identity)

	return shutdownErr
}

// Run starts the agent and blocks until ctx is cancelled or Stop is called.
//
// On cancellation Run stops the agent itself, allowing up to one
// LeaseDuration for the optional release.
//
// Parameters:
//   - ctx: Lifetime of the agent
//
// Returns:
//   - error: ErrAlreadyStarted, or the error from Stop
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()

	select {
	case <-ctx.Done():
	case <-done:
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.LeaseDuration)
	defer cancel()

	if err := a.Stop(stopCtx); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}

	return nil
}

// Tick runs one election round and updates the agent's observable state.
//
// Start drives Tick on its own; calling it directly is meant for agents
// that are not started, e.g. an external scheduler or tests.
//
// Parameters:
//   - ctx: Bounds the store calls of this tick
//
// Returns:
//   - TickResult: Outcome of the round; Err is informational
func (a *Agent) Tick(ctx context.Context) TickResult {
	res := a.elector.Tick(ctx)
	a.lastResult.Store(&res)

	a.metrics.RecordTick(res.Status, res.Action)
	a.setLeader(res.Status.IsLeader())

	if res.Status.IsLeader() {
		a.logger.Info("is the leader", "identity", a.cfg.Identity, "action", res.Action.String())
	} else {
		a.logger.Info("is a follower", "identity", a.cfg.Identity, "holder", res.Holder())
	}

	return res
}

// Identity returns the holder identity this agent contends with.
func (a *Agent) Identity() string {
	return a.cfg.Identity
}

// Config returns a copy of the effective configuration.
func (a *Agent) Config() Config {
	return a.cfg
}

// IsLeader reports whether the most recent tick claimed leadership.
func (a *Agent) IsLeader() bool {
	return a.isLeader.Load()
}

// Status returns the status of the most recent tick.
func (a *Agent) Status() Status {
	if a.isLeader.Load() {
		return StatusLeader
	}

	return StatusFollower
}

// LastResult returns the most recent tick result.
//
// Returns:
//   - TickResult: Last result (zero value before the first tick)
//   - bool: false if no tick has run yet
func (a *Agent) LastResult() (TickResult, bool) {
	res := a.lastResult.Load()
	if res == nil {
		return TickResult{}, false
	}

	return *res, true
}

func (a *Agent) loop(ctx context.Context, done chan struct{}) {
	defer a.wg.Done()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(a.cfg.PollInterval):
		}

		if ctx.Err() != nil {
			return
		}

		a.Tick(ctx)
	}
}

func (a *Agent) setLeader(leader bool) {
	if a.isLeader.Swap(leader) == leader {
		return
	}

	a.metrics.RecordLeadershipChange(a.cfg.Identity, leader)

	if leader {
		a.logger.Info("leadership acquired", "identity", a.cfg.Identity, "lease", a.cfg.LeaseName)
	} else {
		a.logger.Info("leadership lost", "identity", a.cfg.Identity, "lease", a.cfg.LeaseName)
	}
}
