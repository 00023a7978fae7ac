package fuzz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/stats"
)

// Key and value length bounds, inclusive.
const (
	MinKeyLen   = 1
	MaxKeyLen   = 100
	MinValueLen = 1
	MaxValueLen = 1000
)

// Summary aggregates the outcomes of a run. Every completed trial is
// counted exactly once in Passed, Faulted or Failed.
type Summary struct {
	RunID           string
	Iterations      int // Trials requested.
	Passed          int
	Faulted         int // FaultsBeforeSet + FaultsBeforeGet.
	Failed          int
	FaultsBeforeSet int
	FaultsBeforeGet int
	Violations      []*Violation
	Elapsed         time.Duration
}

// Completed returns the number of trials that reached an outcome.
func (s Summary) Completed() int {
	return s.Passed + s.Faulted + s.Failed
}

// Err returns the violations joined into one error, or nil if none.
func (s Summary) Err() error {
	if len(s.Violations) == 0 {
		return nil
	}
	errs := make([]error, len(s.Violations))
	for i, v := range s.Violations {
		errs[i] = v
	}
	return errors.Join(errs...)
}

func (s *Summary) record(o Outcome) {
	switch o.Kind {
	case Passed:
		s.Passed++
	case FaultBeforeSet:
		s.Faulted++
		s.FaultsBeforeSet++
	case FaultBeforeGet:
		s.Faulted++
		s.FaultsBeforeGet++
	case Failed:
		s.Failed++
		s.Violations = append(s.Violations, o.Violation)
	}
}

// Progress is a running snapshot of a fuzz run.
type Progress struct {
	RunID     string
	Completed int
	Total     int
	Passed    int
	Faulted   int
	Failed    int
	Elapsed   time.Duration
}

// ProgressFunc is called periodically with progress updates.
// Calls are serialized and must not block.
type ProgressFunc func(Progress)

func (s *Summary) snapshot(start time.Time) Progress {
	return Progress{
		RunID:     s.RunID,
		Completed: s.Completed(),
		Total:     s.Iterations,
		Passed:    s.Passed,
		Faulted:   s.Faulted,
		Failed:    s.Failed,
		Elapsed:   time.Since(start),
	}
}

// Driver runs fuzz trials. A Driver is safe for concurrent use.
type Driver struct {
	store         Store
	admitter      Admitter
	rand          randsrc.Source
	seed          uint64
	workers       int
	limiter       *rate.Limiter
	stats         stats.Collector
	logger        *zap.Logger
	tracer        trace.Tracer
	progress      ProgressFunc
	progressEvery int

	trials   atomic.Int64
	inflight inflight
}

// inflight holds the keys of trials between their set and their get.
// A trial owns its key exclusively, so a concurrent trial can never
// overwrite it before the read back.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (f *inflight) claim(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return false
	}
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inflight) release(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// claimKey draws keys from rng until one is not held by another trial.
func (d *Driver) claimKey(rng randsrc.Source) string {
	for {
		key := randomString(rng.IntN, MinKeyLen, MaxKeyLen)
		if d.inflight.claim(key) {
			return key
		}
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithSeed seeds trial generation. Worker i draws from a generator
// derived from seed and i. Zero picks a time-based seed.
func WithSeed(seed uint64) Option {
	return func(d *Driver) { d.seed = seed }
}

// WithWorkers sets how many trials run concurrently. Default is 1.
func WithWorkers(n int) Option {
	return func(d *Driver) { d.workers = n }
}

// WithRateLimit caps trials per second across all workers.
// Zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(d *Driver) {
		if perSecond > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(d *Driver) { d.stats = c }
}

// WithProgress calls fn after every `every` completed trials and once more
// when the run ends.
func WithProgress(every int, fn ProgressFunc) Option {
	return func(d *Driver) {
		d.progress = fn
		d.progressEvery = max(every, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithTracerProvider sets the tracer provider. Default is otel's global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Driver) { d.tracer = tp.Tracer(tracerName) }
}

const tracerName = "github.com/discochess/faultkv/internal/fuzz"

// New creates a Driver for st. If admitter is nil, every operation is admitted.
func New(st Store, admitter Admitter, opts ...Option) (*Driver, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", config.ErrInvalidConfig)
	}
	if admitter == nil {
		admitter = fault.Disabled()
	}

	d := &Driver{
		store:    st,
		admitter: admitter,
		workers:  1,
		stats:    stats.NewNoop(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.workers < 1 {
		return nil, fmt.Errorf("%w: workers %d < 1", config.ErrInvalidConfig, d.workers)
	}
	if d.seed == 0 {
		d.seed = uint64(time.Now().UnixNano())
	}
	d.rand = randsrc.New(d.seed)
	return d, nil
}

// RunOne executes a single trial. Injected faults and invariant
// violations are reported in the Outcome; the error is non-nil only when
// the trial could not complete (for example ctx was canceled).
func (d *Driver) RunOne(ctx context.Context) (Outcome, error) {
	trial := int(d.trials.Add(1)) - 1
	return d.runTrial(ctx, d.rand, trial)
}

// Run executes iterations trials and returns their aggregated outcomes.
// Faults never abort the run. If ctx ends, no new trials start and the
// summary covers the trials that completed, with ctx.Err() returned.
func (d *Driver) Run(ctx context.Context, iterations int) (Summary, error) {
	if err := config.ValidateIterations(iterations); err != nil {
		return Summary{}, err
	}

	start := time.Now()
	sum := Summary{
		RunID:      uuid.NewString(),
		Iterations: iterations,
	}
	log := d.logger.With(zap.String("runID", sum.RunID))
	log.Info("fuzz run started",
		zap.Int("iterations", iterations),
		zap.Int("workers", d.workers),
	)

	var (
		mu   sync.Mutex
		next atomic.Int64
	)
	workers := min(d.workers, max(iterations, 1))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		rng := randsrc.New(randsrc.Derive(d.seed, w))
		g.Go(func() error {
			for {
				trial := int(next.Add(1)) - 1
				if trial >= iterations {
					return nil
				}
				if d.limiter != nil {
					if err := d.limiter.Wait(gctx); err != nil {
						return err
					}
				}
				o, err := d.runTrial(gctx, rng, trial)
				if err != nil {
					return err
				}
				if o.Kind == Failed {
					log.Warn("round-trip violation", zap.Error(o.Violation))
				}
				mu.Lock()
				sum.record(o)
				if d.progress != nil && sum.Completed()%d.progressEvery == 0 {
					d.progress(sum.snapshot(start))
				}
				mu.Unlock()
			}
		})
	}
	err := g.Wait()
	sum.Elapsed = time.Since(start)
	if d.progress != nil && sum.Completed()%d.progressEvery != 0 {
		d.progress(sum.snapshot(start))
	}

	log.Info("fuzz run finished",
		zap.Int("passed", sum.Passed),
		zap.Int("faulted", sum.Faulted),
		zap.Int("failed", sum.Failed),
		zap.Duration("elapsed", sum.Elapsed),
	)
	if err != nil {
		return sum, fmt.Errorf("fuzz run %s interrupted after %d trials: %w", sum.RunID, sum.Completed(), err)
	}
	return sum, nil
}

func (d *Driver) runTrial(ctx context.Context, rng randsrc.Source, trial int) (Outcome, error) {
	ctx, span := d.tracer.Start(ctx, "fuzz.trial", trace.WithAttributes(attribute.Int("trial", trial)))
	defer span.End()
	start := time.Now()

	key := d.claimKey(rng)
	defer d.inflight.release(key)
	value := []byte(randomString(rng.IntN, MinValueLen, MaxValueLen))
	span.SetAttributes(
		attribute.Int("key.length", len(key)),
		attribute.Int("value.length", len(value)),
	)

	o, err := d.setThenGet(ctx, trial, key, value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "trial aborted")
		return Outcome{}, err
	}

	span.SetAttributes(attribute.String("outcome", o.Kind.String()))
	if o.Kind == Failed {
		span.SetStatus(codes.Error, o.Violation.Error())
	}
	d.stats.ObserveHistogram(stats.MetricTrialDuration, time.Since(start).Seconds())
	switch {
	case o.Kind == Passed:
		d.stats.IncCounter(stats.MetricTrialsPassed, 1)
	case o.Kind.Faulted():
		d.stats.IncCounter(stats.MetricTrialsFaulted, 1)
	default:
		d.stats.IncCounter(stats.MetricTrialsFailed, 1)
	}
	d.logger.Debug("trial complete",
		zap.Int("trial", trial),
		zap.Stringer("outcome", o.Kind),
	)
	return o, nil
}

func (d *Driver) setThenGet(ctx context.Context, trial int, key string, value []byte) (Outcome, error) {
	if err := d.admitter.Admit(ctx); err != nil {
		if errors.Is(err, fault.ErrNetworkFault) {
			return Outcome{Kind: FaultBeforeSet, Key: key}, nil
		}
		return Outcome{}, err
	}
	if err := d.store.Set(ctx, key, value); err != nil {
		// A store with its own injector reports faults from Set directly.
		if errors.Is(err, fault.ErrNetworkFault) {
			return Outcome{Kind: FaultBeforeSet, Key: key}, nil
		}
		return Outcome{}, fmt.Errorf("trial %d: set: %w", trial, err)
	}

	if err := d.admitter.Admit(ctx); err != nil {
		if errors.Is(err, fault.ErrNetworkFault) {
			return Outcome{Kind: FaultBeforeGet, Key: key}, nil
		}
		return Outcome{}, err
	}
	got, err := d.store.Get(ctx, key)
	if errors.Is(err, fault.ErrNetworkFault) {
		return Outcome{Kind: FaultBeforeGet, Key: key}, nil
	}

	v, err := compare(trial, key, value, got, err)
	if err != nil {
		return Outcome{}, fmt.Errorf("trial %d: get: %w", trial, err)
	}
	if v == nil {
		return Outcome{Kind: Passed, Key: key}, nil
	}
	if r, ok := d.store.(Router); ok {
		v.Shard = r.Route(key)
	}
	return Outcome{Kind: Failed, Key: key, Violation: v}, nil
}
