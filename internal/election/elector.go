package election

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/solo/internal/clock"
	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/internal/metrics"
	"github.com/arloliu/solo/types"
)

// Store operation labels used in logs and metrics.
const (
	OpGet    = "get"
	OpCreate = "create"
	OpCAS    = "cas"
)

// Config holds the immutable parameters of one Elector.
type Config struct {
	// Name is the lease name inside the store's scope.
	Name string
	// Scope is recorded on created records (namespace, bucket, table).
	Scope string
	// Identity is this process's stable, unique identity.
	Identity string
	// LeaseDuration is written on create and used when a record carries none.
	// Must be a positive whole number of seconds.
	LeaseDuration time.Duration
	// OperationTimeout bounds each store call. Zero means no extra deadline.
	OperationTimeout time.Duration
}

// Validate checks the elector configuration.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: lease name is required", types.ErrInvalidConfig)
	}
	if c.Identity == "" {
		return fmt.Errorf("%w: identity is required", types.ErrInvalidConfig)
	}
	if c.LeaseDuration < time.Second {
		return fmt.Errorf("%w: lease duration must be >= 1s, got %v", types.ErrInvalidConfig, c.LeaseDuration)
	}
	if c.LeaseDuration%time.Second != 0 {
		return fmt.Errorf("%w: lease duration must be whole seconds, got %v", types.ErrInvalidConfig, c.LeaseDuration)
	}
	if c.OperationTimeout < 0 {
		return fmt.Errorf("%w: operation timeout must be >= 0, got %v", types.ErrInvalidConfig, c.OperationTimeout)
	}

	return nil
}

// Option configures an Elector.
type Option func(*Elector)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l types.Logger) Option {
	return func(e *Elector) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(e *Elector) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c types.Clock) Option {
	return func(e *Elector) {
		if c != nil {
			e.clock = c
		}
	}
}

// Result describes the outcome of one tick.
type Result = types.TickResult

// Elector runs the lease state machine for one identity.
type Elector struct {
	store   types.LeaseStore
	cfg     Config
	clock   types.Clock
	logger  types.Logger
	metrics types.MetricsCollector
}

// New creates an Elector.
//
// Parameters:
//   - store: Lease store shared by all contenders
//   - cfg: Elector configuration
//   - opts: Optional logger, metrics and clock
//
// Returns:
//   - *Elector: Ready elector
//   - error: ErrLeaseStoreRequired or ErrInvalidConfig
func New(store types.LeaseStore, cfg Config, opts ...Option) (*Elector, error) {
	if store == nil {
		return nil, types.ErrLeaseStoreRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Elector{
		store:   store,
		cfg:     cfg,
		clock:   clock.NewReal(),
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Identity returns the elector's identity.
func (e *Elector) Identity() string {
	return e.cfg.Identity
}

// Tick performs one read and at most one conditional write.
//
// Tick never returns an error and never panics: every failure is folded into
// a Follower result with Result.Err set.
//
// Parameters:
//   - ctx: Context for the tick's store calls
//
// Returns:
//   - Result: Leadership status and diagnostics for this tick
func (e *Elector) Tick(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = e.abandon(res, &opError{op: "tick", err: fmt.Errorf("%w: panic: %v", types.ErrStore, r)})
		}
	}()

	rec, created, err := e.observe(ctx)
	res.Created = created
	if err != nil {
		res.State = types.LeaseStateNoLease
		return e.abandon(res, err)
	}

	now := e.clock.Now()
	res.Record = rec
	res.State = rec.State(e.cfg.Identity, now, e.cfg.LeaseDuration)
	e.metrics.RecordTransitions(rec.Transitions)

	switch res.State {
	case types.LeaseStateUnheld, types.LeaseStateExpired:
		return e.acquire(ctx, res, rec, now)
	case types.LeaseStateHeldBySelf:
		return e.renew(ctx, res, rec, now)
	case types.LeaseStateHeldByOther:
		res.Action = types.ActionYield
		res.Status = types.StatusFollower
		e.logger.Debug("leadership held by another identity",
			"lease", e.cfg.Name,
			"identity", e.cfg.Identity,
			"holder", rec.HolderIdentity,
		)

		return res
	default:
		return e.abandon(res, &opError{op: "tick", err: fmt.Errorf("%w: unexpected lease state %v", types.ErrStore, res.State)})
	}
}

// Release gives up the lease if this identity holds it.
//
// The holder is cleared with a compare-and-swap; every other field is kept so
// the next acquirer preserves the acquire time and increments transitions.
// Release writes nothing when another identity holds the lease.
//
// Parameters:
//   - ctx: Context for the store calls
//
// Returns:
//   - Result: Always Follower; Action is ActionRelease if a write succeeded
func (e *Elector) Release(ctx context.Context) Result {
	res := Result{Status: types.StatusFollower, Action: types.ActionNone}

	rec, err := e.get(ctx)
	if err != nil {
		if types.KindOf(err) == types.KindNotFound {
			return res
		}
		return e.abandon(res, err)
	}

	res.Record = rec
	res.State = rec.State(e.cfg.Identity, e.clock.Now(), e.cfg.LeaseDuration)
	if rec.HolderIdentity != e.cfg.Identity {
		return res
	}

	cand := e.candidate(rec)
	cand.HolderIdentity = ""

	version, err := e.cas(ctx, cand, rec.Version)
	if err != nil {
		return e.abandon(res, err)
	}

	cand.Version = version
	res.Record = cand
	res.Action = types.ActionRelease
	e.logger.Info("released leadership", "lease", e.cfg.Name, "identity", e.cfg.Identity)

	return res
}

// observe reads the record, creating it first if it does not exist.
func (e *Elector) observe(ctx context.Context) (*types.LeaseRecord, bool, error) {
	rec, err := e.get(ctx)
	switch types.KindOf(err) {
	case types.KindNone:
		return rec, false, nil
	case types.KindNotFound:
		// fall through to the create path
	case types.KindAlreadyExists, types.KindVersionConflict, types.KindStore:
		return nil, false, err
	}

	created := false
	fresh := types.NewLeaseRecord(e.cfg.Name, e.cfg.Scope, int32(e.cfg.LeaseDuration/time.Second))
	err = e.create(ctx, fresh)
	switch types.KindOf(err) {
	case types.KindNone:
		created = true
		e.logger.Info("created lease record", "lease", e.cfg.Name, "scope", e.cfg.Scope)
	case types.KindAlreadyExists:
		e.logger.Debug("lease record already exists", "lease", e.cfg.Name)
	case types.KindNotFound, types.KindVersionConflict, types.KindStore:
		return nil, false, err
	}

	rec, err = e.get(ctx)
	if err != nil {
		return nil, created, err
	}

	return rec, created, nil
}

func (e *Elector) acquire(ctx context.Context, res Result, rec *types.LeaseRecord, now time.Time) Result {
	res.Action = types.ActionAcquire
	res.Status = types.StatusFollower

	cand := e.candidate(rec)
	cand.HolderIdentity = e.cfg.Identity
	renewed := now
	cand.RenewTime = &renewed
	if cand.AcquireTime == nil {
		acquired := now
		cand.AcquireTime = &acquired
	}
	cand.Transitions++

	version, err := e.cas(ctx, cand, rec.Version)
	switch types.KindOf(err) {
	case types.KindNone:
		cand.Version = version
		res.Record = cand
		res.Status = types.StatusLeader
		e.logger.Info("acquired leadership",
			"lease", e.cfg.Name,
			"identity", e.cfg.Identity,
			"previous_holder", rec.HolderIdentity,
			"transitions", cand.Transitions,
		)
		e.metrics.RecordTransitions(cand.Transitions)

		return res
	case types.KindVersionConflict:
		e.logger.Info("lost leadership race",
			"lease", e.cfg.Name,
			"identity", e.cfg.Identity,
			"action", res.Action.String(),
		)
		res.Err = err
		e.metrics.RecordTickError(OpCAS, types.KindVersionConflict)

		return res
	case types.KindNotFound, types.KindAlreadyExists, types.KindStore:
		return e.abandon(res, err)
	}

	return res
}

func (e *Elector) renew(ctx context.Context, res Result, rec *types.LeaseRecord, now time.Time) Result {
	res.Action = types.ActionRenew
	res.Status = types.StatusFollower

	cand := e.candidate(rec)
	renewed := now
	cand.RenewTime = &renewed

	version, err := e.cas(ctx, cand, rec.Version)
	switch types.KindOf(err) {
	case types.KindNone:
		cand.Version = version
		res.Record = cand
		res.Status = types.StatusLeader
		e.logger.Debug("renewed leadership", "lease", e.cfg.Name, "identity", e.cfg.Identity)

		return res
	case types.KindVersionConflict:
		e.logger.Warn("lease changed during renewal",
			"lease", e.cfg.Name,
			"identity", e.cfg.Identity,
		)
		res.Err = err
		e.metrics.RecordTickError(OpCAS, types.KindVersionConflict)

		return res
	case types.KindNotFound, types.KindAlreadyExists, types.KindStore:
		return e.abandon(res, err)
	}

	return res
}

// candidate copies rec for writing. A record without a lease duration, as
// left by other clients, gets the configured one so the write validates.
func (e *Elector) candidate(rec *types.LeaseRecord) *types.LeaseRecord {
	cand := rec.Clone()
	if cand.LeaseDurationSeconds <= 0 {
		cand.LeaseDurationSeconds = int32(e.cfg.LeaseDuration / time.Second)
	}

	return cand
}

// abandon folds err into a Follower result and reports it.
func (e *Elector) abandon(res Result, err error) Result {
	res.Status = types.StatusFollower
	res.Err = err

	op := "tick"
	var oe *opError
	if errors.As(err, &oe) {
		op = oe.op
	}
	kind := types.KindOf(err)

	e.metrics.RecordTickError(op, kind)
	e.logger.Warn("election tick abandoned",
		"lease", e.cfg.Name,
		"identity", e.cfg.Identity,
		"op", op,
		"kind", kind.String(),
		"error", err,
	)

	return res
}

func (e *Elector) get(ctx context.Context) (*types.LeaseRecord, error) {
	var rec *types.LeaseRecord
	err := e.call(ctx, OpGet, func(ctx context.Context) error {
		var err error
		rec, err = e.store.Get(ctx, e.cfg.Name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &opError{op: OpGet, err: fmt.Errorf("%w: store returned nil record", types.ErrStore)}
	}

	return rec, nil
}

func (e *Elector) create(ctx context.Context, rec *types.LeaseRecord) error {
	return e.call(ctx, OpCreate, func(ctx context.Context) error {
		return e.store.Create(ctx, rec)
	})
}

func (e *Elector) cas(ctx context.Context, rec *types.LeaseRecord, expected types.Version) (types.Version, error) {
	var version types.Version
	err := e.call(ctx, OpCAS, func(ctx context.Context) error {
		var err error
		version, err = e.store.CompareAndSwap(ctx, rec, expected)
		return err
	})

	return version, err
}

// call runs one store operation under the operation timeout and records its latency.
func (e *Elector) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if e.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.OperationTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	e.metrics.RecordStoreOperation(op, time.Since(start).Seconds())

	if err != nil {
		return &opError{op: op, err: err}
	}

	return nil
}

// opError tags a store error with the operation that produced it.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *opError) Unwrap() error {
	return e.err
}
