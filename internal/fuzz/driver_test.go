package fuzz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discochess/faultkv"
	"github.com/discochess/faultkv/internal/clock"
	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/store"
)

func newStore(t *testing.T, shards int) *faultkv.Store {
	t.Helper()
	st, err := faultkv.New(faultkv.WithShardCount(shards))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newInjector(t *testing.T, rate float64) *fault.Injector {
	t.Helper()
	inj, err := fault.New(fault.Policy{FailureRate: rate, MaxLatency: time.Second},
		fault.WithClock(clock.NewVirtual(time.Unix(0, 0))),
		fault.WithRand(randsrc.New(17)))
	require.NoError(t, err)
	return inj
}

// recordingStore wraps a store and remembers every written key and value.
type recordingStore struct {
	Store
	mu     sync.Mutex
	keys   []string
	values [][]byte
}

func (r *recordingStore) Set(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.values = append(r.values, value)
	r.mu.Unlock()
	return r.Store.Set(ctx, key, value)
}

// corruptingStore returns a value different from the one written.
type corruptingStore struct {
	Store
}

func (c corruptingStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.Store.Get(ctx, key)
	if err != nil || len(v) == 0 {
		return v, err
	}
	out := append([]byte(nil), v...)
	out[0] ^= 0xff
	return out, nil
}

// forgetfulStore drops every write.
type forgetfulStore struct{}

func (forgetfulStore) Set(context.Context, string, []byte) error { return nil }
func (forgetfulStore) Get(context.Context, string) ([]byte, error) {
	return nil, store.ErrNotFound
}

// brokenStore fails with a non-fault error.
type brokenStore struct{ forgetfulStore }

var errDisk = errors.New("disk on fire")

func (brokenStore) Set(context.Context, string, []byte) error { return errDisk }

func TestDriver_Run_NoFaults(t *testing.T) {
	st := newStore(t, 3)
	d, err := New(st, newInjector(t, 0), WithSeed(1))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 1000)
	require.NoError(t, err)

	assert.Equal(t, 1000, sum.Passed)
	assert.Equal(t, 0, sum.Faulted)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 1000, sum.Completed())
	assert.NotEmpty(t, sum.RunID)
	assert.NoError(t, sum.Err())
}

func TestDriver_Run_AllFaults(t *testing.T) {
	st := newStore(t, 3)
	d, err := New(st, newInjector(t, 1), WithSeed(1))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, 50, sum.Faulted)
	assert.Equal(t, 50, sum.FaultsBeforeSet)
	assert.Equal(t, 0, sum.FaultsBeforeGet)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 0, sum.Passed)

	for _, info := range st.Stats() {
		assert.Zero(t, info.KeyCount, "rejected sets must not reach shard %d", info.ID)
	}
}

func TestDriver_Run_PartialFaults(t *testing.T) {
	st := newStore(t, 3)
	d, err := New(st, newInjector(t, 0.3), WithSeed(2))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 500)
	require.NoError(t, err)

	assert.Equal(t, 500, sum.Completed())
	assert.Equal(t, sum.FaultsBeforeSet+sum.FaultsBeforeGet, sum.Faulted)
	assert.Greater(t, sum.FaultsBeforeSet, 0)
	assert.Greater(t, sum.FaultsBeforeGet, 0)
	assert.Greater(t, sum.Passed, 0)
	assert.Equal(t, 0, sum.Failed)
}

func TestDriver_RunOne_FaultBeforeGet(t *testing.T) {
	st := newStore(t, 3)
	// Draw pairs are (fail, latency): admit the set, reject the get.
	inj, err := fault.New(fault.Policy{FailureRate: 0.5},
		fault.WithRand(randsrc.NewSequence(0.9, 0, 0.1, 0)))
	require.NoError(t, err)

	d, err := New(st, inj, WithSeed(3))
	require.NoError(t, err)

	o, err := d.RunOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FaultBeforeGet, o.Kind)
	assert.Equal(t, "network-fault-before-get", o.Kind.String())
	assert.True(t, o.Kind.Faulted())

	// The set went through even though the get was rejected.
	got, err := st.Get(context.Background(), o.Key)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestDriver_RunOne_Violation(t *testing.T) {
	st := newStore(t, 3)
	d, err := New(corruptingStore{st}, nil, WithSeed(4))
	require.NoError(t, err)

	o, err := d.RunOne(context.Background())
	require.NoError(t, err)
	require.Equal(t, Failed, o.Kind)
	require.NotNil(t, o.Violation)
	assert.True(t, o.Violation.Found)
	assert.Equal(t, o.Key, o.Violation.Key)
	assert.NotEqual(t, o.Violation.Want, o.Violation.Got)
	// corruptingStore does not route.
	assert.Equal(t, -1, o.Violation.Shard)
}

func TestDriver_RunOne_ViolationReportsShard(t *testing.T) {
	d, err := New(routedForgetful{}, nil, WithSeed(4))
	require.NoError(t, err)

	o, err := d.RunOne(context.Background())
	require.NoError(t, err)
	require.Equal(t, Failed, o.Kind)
	assert.Equal(t, 2, o.Violation.Shard)
	assert.False(t, o.Violation.Found)
	assert.Contains(t, o.Violation.Error(), "<absent>")
}

type routedForgetful struct{ forgetfulStore }

func (routedForgetful) Route(string) int { return 2 }

func TestDriver_Run_ViolationsDoNotAbort(t *testing.T) {
	d, err := New(forgetfulStore{}, nil, WithSeed(5))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, sum.Failed)
	assert.Len(t, sum.Violations, 20)

	var v *Violation
	require.ErrorAs(t, sum.Err(), &v)
	assert.False(t, v.Found)
}

func TestDriver_Run_StoreErrorAborts(t *testing.T) {
	d, err := New(brokenStore{}, nil, WithSeed(6))
	require.NoError(t, err)

	_, err = d.Run(context.Background(), 10)
	assert.ErrorIs(t, err, errDisk)
}

func TestDriver_Run_Workers(t *testing.T) {
	st, err := faultkv.New(
		faultkv.WithShardCount(3),
		faultkv.WithShardLatency(time.Millisecond, 2*time.Millisecond),
		faultkv.WithSeed(3),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// Short keys collide often across 64 workers; each trial must still
	// read back its own write.
	d, err := New(st, nil, WithSeed(7), WithWorkers(64))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 20000)
	require.NoError(t, err)
	assert.Equal(t, 20000, sum.Completed())
	assert.Equal(t, 20000, sum.Passed)
	assert.Zero(t, sum.Failed, "violations: %v", sum.Violations)
}

func TestDriver_Run_WorkersWithFaults(t *testing.T) {
	st := newStore(t, 3)
	d, err := New(st, newInjector(t, 0.2), WithSeed(7), WithWorkers(8))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 400)
	require.NoError(t, err)
	assert.Equal(t, 400, sum.Completed())
	assert.Equal(t, 0, sum.Failed)
}

func TestDriver_ClaimKey_RedrawsHeldKey(t *testing.T) {
	d, err := New(newStore(t, 1), nil)
	require.NoError(t, err)
	require.True(t, d.inflight.claim("a"))

	// Each pair of draws yields a one-letter key: "a", then "F".
	assert.Equal(t, "F", d.claimKey(randsrc.NewSequence(0, 0, 0, 0.5)))

	d.inflight.release("a")
	assert.Equal(t, "a", d.claimKey(randsrc.NewSequence(0, 0)))
	assert.False(t, d.inflight.claim("F"), "F is still held")
}

func TestDriver_Run_ZeroIterations(t *testing.T) {
	d, err := New(newStore(t, 1), nil)
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Completed())
}

func TestDriver_Run_NegativeIterations(t *testing.T) {
	d, err := New(newStore(t, 1), nil)
	require.NoError(t, err)

	_, err = d.Run(context.Background(), -1)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(newStore(t, 1), nil, WithWorkers(0))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDriver_Run_Canceled(t *testing.T) {
	d, err := New(newStore(t, 3), nil, WithSeed(8))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := d.Run(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, sum.Completed(), 100)
}

func TestDriver_Run_RateLimit(t *testing.T) {
	d, err := New(newStore(t, 3), nil, WithSeed(9), WithRateLimit(200))
	require.NoError(t, err)

	start := time.Now()
	sum, err := d.Run(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 11, sum.Passed)
	// Burst of one, then ten more at 200/s.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDriver_GeneratesWithinBounds(t *testing.T) {
	rec := &recordingStore{Store: newStore(t, 3)}
	d, err := New(rec, nil, WithSeed(10))
	require.NoError(t, err)

	_, err = d.Run(context.Background(), 300)
	require.NoError(t, err)

	require.Len(t, rec.keys, 300)
	for i, k := range rec.keys {
		assert.GreaterOrEqual(t, len(k), MinKeyLen)
		assert.LessOrEqual(t, len(k), MaxKeyLen)
		assert.GreaterOrEqual(t, len(rec.values[i]), MinValueLen)
		assert.LessOrEqual(t, len(rec.values[i]), MaxValueLen)
		for _, c := range k {
			assert.Contains(t, alphabet, string(c))
		}
	}
}

func TestDriver_DeterministicWithSeed(t *testing.T) {
	keys := func() []string {
		rec := &recordingStore{Store: newStore(t, 3)}
		d, err := New(rec, nil, WithSeed(42))
		require.NoError(t, err)
		_, err = d.Run(context.Background(), 25)
		require.NoError(t, err)
		return rec.keys
	}
	assert.Equal(t, keys(), keys())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "passed", Passed.String())
	assert.Equal(t, "network-fault-before-set", FaultBeforeSet.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.False(t, Failed.Faulted())
}

func TestDriver_Run_Progress(t *testing.T) {
	var got []Progress
	d, err := New(newStore(t, 3), newInjector(t, 0.5), WithSeed(10), WithWorkers(4),
		WithProgress(10, func(p Progress) { got = append(got, p) }))
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), 25)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []int{10, 20, 25}, []int{got[0].Completed, got[1].Completed, got[2].Completed})
	last := got[2]
	assert.Equal(t, sum.RunID, last.RunID)
	assert.Equal(t, 25, last.Total)
	assert.Equal(t, sum.Passed, last.Passed)
	assert.Equal(t, sum.Faulted, last.Faulted)
}
