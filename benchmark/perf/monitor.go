// Package perf measures per-operation latency and error rates of a store.
package perf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/faultkv/benchmark/analysis"
	"github.com/discochess/faultkv/internal/clock"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/stats"
)

// Operation names used by Run.
const (
	OpSet = "set"
	OpGet = "get"
)

// Monitor records how long each measured call takes.
// Failed calls count as errors and are not timed.
// A Monitor is safe for concurrent use.
type Monitor struct {
	clock clock.Clock
	stats stats.Collector

	mu      sync.Mutex
	samples map[string][]time.Duration
	errors  map[string]int
	faults  map[string]int
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithClock sets the clock used for timing.
func WithClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

// WithStats mirrors every sample into a stats collector as a histogram
// named "faultkv_perf_<op>_seconds".
func WithStats(s stats.Collector) MonitorOption {
	return func(m *Monitor) { m.stats = s }
}

// NewMonitor creates an empty Monitor.
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		clock:   clock.Real{},
		stats:   stats.NewNoop(),
		samples: make(map[string][]time.Duration),
		errors:  make(map[string]int),
		faults:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Measure runs fn and records its duration under op.
// The error from fn is returned unchanged.
func (m *Monitor) Measure(op string, fn func() error) error {
	start := m.clock.Now()
	err := fn()
	elapsed := m.clock.Now().Sub(start)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.errors[op]++
		if errors.Is(err, fault.ErrNetworkFault) {
			m.faults[op]++
		}
		return err
	}
	m.samples[op] = append(m.samples[op], elapsed)
	m.stats.ObserveHistogram("faultkv_perf_"+op+"_seconds", elapsed.Seconds())
	return nil
}

// Samples returns the durations recorded for op in milliseconds.
func (m *Monitor) Samples(op string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return millis(m.samples[op])
}

func millis(ds []time.Duration) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = float64(d) / float64(time.Millisecond)
	}
	return out
}

// OpReport summarizes one operation.
type OpReport struct {
	Name      string
	Succeeded int
	Errors    int
	Faults    int                        // Errors caused by injected network faults.
	Latency   *analysis.DescriptiveStats // Milliseconds.
}

// Total returns the number of attempts.
func (r OpReport) Total() int {
	return r.Succeeded + r.Errors
}

// ErrorRate returns errors over attempts, or 0 with no attempts.
func (r OpReport) ErrorRate() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Errors) / float64(r.Total())
}

// Report summarizes every measured operation.
type Report struct {
	Ops []OpReport // Sorted by name.
}

// Op returns the report for name, or a zero OpReport.
func (r *Report) Op(name string) OpReport {
	for _, op := range r.Ops {
		if op.Name == name {
			return op
		}
	}
	return OpReport{Name: name, Latency: analysis.Describe(nil)}
}

// Report computes descriptive statistics for everything measured so far.
func (m *Monitor) Report() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &Report{}
	for op := range m.samples {
		r.Ops = append(r.Ops, m.opReport(op))
	}
	for op := range m.errors {
		if _, ok := m.samples[op]; !ok {
			r.Ops = append(r.Ops, m.opReport(op))
		}
	}
	sort.Slice(r.Ops, func(i, j int) bool { return r.Ops[i].Name < r.Ops[j].Name })
	return r
}

func (m *Monitor) opReport(op string) OpReport {
	return OpReport{
		Name:      op,
		Succeeded: len(m.samples[op]),
		Errors:    m.errors[op],
		Faults:    m.faults[op],
		Latency:   analysis.Describe(millis(m.samples[op])),
	}
}

// Store is the surface Run exercises.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Run performs n set-then-get pairs on keys key_0 .. key_{n-1} with values
// value_i, measuring each call. Individual failures are recorded and the
// workload continues. Run stops early only when ctx is done.
func Run(ctx context.Context, st Store, n int, m *Monitor, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("after %d operations: %w", i, err)
		}
		key := fmt.Sprintf("key_%d", i)
		value := []byte(fmt.Sprintf("value_%d", i))

		if err := m.Measure(OpSet, func() error { return st.Set(ctx, key, value) }); err != nil {
			logger.Debug("operation failed", zap.String("op", OpSet), zap.String("key", key), zap.Error(err))
			continue
		}
		if err := m.Measure(OpGet, func() error {
			_, err := st.Get(ctx, key)
			return err
		}); err != nil {
			logger.Debug("operation failed", zap.String("op", OpGet), zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}
