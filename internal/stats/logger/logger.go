// Package logger provides a zap-based stats collector that keeps running
// totals and logs them.
package logger

import (
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/faultkv/internal/stats"
)

// Collector implements stats.Collector by logging every update at Debug and
// a summary of all totals on Flush.
type Collector struct {
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
	observed map[string]int
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new logger-based collector.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		logger:   logger.Named("stats"),
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
		observed: make(map[string]int),
	}
}

// IncCounter adds delta to a counter and logs the new total.
func (c *Collector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	c.counters[name] += delta
	total := c.counters[name]
	c.mu.Unlock()

	c.logger.Debug("counter",
		zap.String("metric", name),
		zap.Int64("delta", delta),
		zap.Int64("total", total),
	)
}

// SetGauge records and logs a gauge value.
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()

	c.logger.Debug("gauge",
		zap.String("metric", name),
		zap.Int64("value", value),
	)
}

// ObserveHistogram logs a histogram observation.
// Only the observation count is retained.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.mu.Lock()
	c.observed[name]++
	c.mu.Unlock()

	c.logger.Debug("histogram",
		zap.String("metric", name),
		zap.Float64("value", value),
	)
}

// Counter returns the current total of a counter.
func (c *Collector) Counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Flush logs every counter and gauge at Info in one entry.
func (c *Collector) Flush() {
	c.mu.Lock()
	fields := []zap.Field{
		zap.Object("counters", maps.Clone(int64Map(c.counters))),
		zap.Object("gauges", maps.Clone(int64Map(c.gauges))),
		zap.Int("histograms", len(c.observed)),
	}
	c.mu.Unlock()

	c.logger.Info("stats summary", fields...)
}

// int64Map marshals with sorted keys.
type int64Map map[string]int64

func (m int64Map) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddInt64(k, m[k])
	}
	return nil
}
