// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the simulation.
const (
	// Fault injector metrics.
	MetricAdmitted        = "faultkv_injector_admitted_total"
	MetricRejected        = "faultkv_injector_rejected_total"
	MetricInjectedLatency = "faultkv_injector_latency_seconds"

	// Shard metrics.
	MetricShardGets    = "faultkv_shard_gets_total"
	MetricShardSets    = "faultkv_shard_sets_total"
	MetricShardLatency = "faultkv_shard_latency_seconds"
	MetricShardEvicted = "faultkv_shard_evictions_total"

	// Store metrics.
	MetricStoreGets   = "faultkv_store_gets_total"
	MetricStoreSets   = "faultkv_store_sets_total"
	MetricStoreMisses = "faultkv_store_misses_total"
	MetricStoreFaults = "faultkv_store_faults_total"

	// Fuzz driver metrics.
	MetricTrialsPassed  = "faultkv_fuzz_trials_passed_total"
	MetricTrialsFaulted = "faultkv_fuzz_trials_faulted_total"
	MetricTrialsFailed  = "faultkv_fuzz_trials_failed_total"
	MetricTrialDuration = "faultkv_fuzz_trial_duration_seconds"

	// Property check metrics.
	MetricPropertyCases      = "faultkv_property_cases_total"
	MetricPropertyViolations = "faultkv_property_violations_total"
)

// help holds the description of each known metric.
var help = map[string]string{
	MetricAdmitted:           "Operations admitted by the fault injector.",
	MetricRejected:           "Operations rejected with a network fault.",
	MetricInjectedLatency:    "Latency injected before admitted operations.",
	MetricShardGets:          "Reads served by a shard.",
	MetricShardSets:          "Writes applied by a shard.",
	MetricShardLatency:       "Latency simulated inside a shard.",
	MetricShardEvicted:       "Entries evicted from bounded shard stores.",
	MetricStoreGets:          "Reads routed by the store.",
	MetricStoreSets:          "Writes routed by the store.",
	MetricStoreMisses:        "Reads for keys that were never set.",
	MetricStoreFaults:        "Store operations failed by injected faults.",
	MetricTrialsPassed:       "Fuzz trials that read back what they wrote.",
	MetricTrialsFaulted:      "Fuzz trials ended by an injected fault.",
	MetricTrialsFailed:       "Fuzz trials that observed a consistency violation.",
	MetricTrialDuration:      "Wall time of one fuzz trial.",
	MetricPropertyCases:      "Property cases executed.",
	MetricPropertyViolations: "Property cases that found a violation.",
}

// Help returns the description of a metric, or the name itself for
// metrics without one.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
