// Package fault simulates an unreliable network in front of the store.
//
// An Injector is sampled once before every simulated operation. It either
// rejects the operation with ErrNetworkFault, or delays it by a uniformly
// drawn latency and lets it through. The decision itself is a pure function
// of the policy and two random draws (see Policy.Decide) so it can be tested
// without timing.
package fault

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/faultkv/internal/clock"
	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/stats"
)

// ErrNetworkFault is returned when the injector rejects an operation.
// It is an expected outcome, not a correctness failure.
var ErrNetworkFault = errors.New("fault: network fault injected")

// Policy is the immutable fault configuration.
type Policy struct {
	// FailureRate is the probability in [0, 1] that an operation is rejected.
	FailureRate float64

	// MaxLatency is the inclusive upper bound of the injected delay.
	MaxLatency time.Duration
}

// Validate checks the policy ranges.
func (p Policy) Validate() error {
	if err := config.ValidateFailureRate(p.FailureRate); err != nil {
		return err
	}
	return config.ValidateLatency("max latency", p.MaxLatency)
}

// Decision is the outcome of sampling the policy once.
type Decision struct {
	// Fail is true when the operation must be rejected. No delay applies.
	Fail bool

	// Delay is the latency to inject before the operation proceeds.
	Delay time.Duration
}

// Decide maps two draws in [0, 1) onto a Decision.
// failDraw < FailureRate rejects; otherwise latencyDraw scales MaxLatency.
func (p Policy) Decide(failDraw, latencyDraw float64) Decision {
	if failDraw < p.FailureRate {
		return Decision{Fail: true}
	}
	return Decision{Delay: time.Duration(latencyDraw * float64(p.MaxLatency))}
}

// Stats holds injector counters.
type Stats struct {
	Admitted int64
	Rejected int64
}

// Injector applies a Policy to live operations.
// An Injector is safe for concurrent use by multiple goroutines.
type Injector struct {
	policy Policy
	rand   randsrc.Source
	clock  clock.Clock
	stats  stats.Collector
	logger *zap.Logger

	admitted atomic.Int64
	rejected atomic.Int64
}

// Option configures an Injector.
type Option func(*Injector)

// WithRand sets the random source. Default is a time-seeded randsrc.Locked.
func WithRand(src randsrc.Source) Option {
	return func(i *Injector) { i.rand = src }
}

// WithClock sets the clock used for delays. Default is clock.Real.
func WithClock(c clock.Clock) Option {
	return func(i *Injector) { i.clock = c }
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(i *Injector) { i.stats = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Injector) { i.logger = l }
}

// New creates an Injector for policy. It fails fast on an invalid policy.
func New(policy Policy, opts ...Option) (*Injector, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	i := &Injector{
		policy: policy,
		clock:  clock.Real{},
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.rand == nil {
		i.rand = randsrc.New(0)
	}
	return i, nil
}

// Disabled returns an injector that admits everything without delay.
func Disabled() *Injector {
	i, _ := New(Policy{})
	return i
}

// Policy returns the injector's configuration.
func (i *Injector) Policy() Policy {
	return i.policy
}

// Admit samples the policy once. It returns ErrNetworkFault when the
// operation is rejected, ctx.Err() if the context ends during the delay,
// and nil otherwise. Admit never retries.
func (i *Injector) Admit(ctx context.Context) error {
	d := i.policy.Decide(i.rand.Float64(), i.rand.Float64())
	if d.Fail {
		i.rejected.Add(1)
		i.stats.IncCounter(stats.MetricRejected, 1)
		i.logger.Debug("operation rejected")
		return ErrNetworkFault
	}

	if err := i.clock.Sleep(ctx, d.Delay); err != nil {
		return fmt.Errorf("injecting latency: %w", err)
	}

	i.admitted.Add(1)
	i.stats.IncCounter(stats.MetricAdmitted, 1)
	i.stats.ObserveHistogram(stats.MetricInjectedLatency, d.Delay.Seconds())
	return nil
}

// Stats returns a snapshot of the counters.
func (i *Injector) Stats() Stats {
	return Stats{
		Admitted: i.admitted.Load(),
		Rejected: i.rejected.Load(),
	}
}
