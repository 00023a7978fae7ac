package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discochess/faultkv"
	"github.com/discochess/faultkv/internal/clock"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/randsrc"
)

// tickingClock advances by step on every Now call.
type tickingClock struct {
	*clock.Virtual
	step time.Duration
}

func (c tickingClock) Now() time.Time {
	c.Advance(c.step)
	return c.Virtual.Now()
}

func TestMonitor_Measure(t *testing.T) {
	m := NewMonitor(WithClock(tickingClock{clock.NewVirtual(time.Unix(0, 0)), 2 * time.Millisecond}))

	require.NoError(t, m.Measure(OpSet, func() error { return nil }))
	require.NoError(t, m.Measure(OpSet, func() error { return nil }))
	errBoom := errors.New("boom")
	assert.ErrorIs(t, m.Measure(OpSet, func() error { return errBoom }), errBoom)
	assert.Error(t, m.Measure(OpGet, func() error { return fault.ErrNetworkFault }))

	assert.Equal(t, []float64{2, 2}, m.Samples(OpSet))

	r := m.Report()
	require.Len(t, r.Ops, 2)
	assert.Equal(t, OpGet, r.Ops[0].Name)
	assert.Equal(t, OpSet, r.Ops[1].Name)

	set := r.Op(OpSet)
	assert.Equal(t, 2, set.Succeeded)
	assert.Equal(t, 1, set.Errors)
	assert.Equal(t, 0, set.Faults)
	assert.Equal(t, 3, set.Total())
	assert.InDelta(t, 1.0/3, set.ErrorRate(), 1e-9)
	assert.Equal(t, 2.0, set.Latency.Mean)

	get := r.Op(OpGet)
	assert.Equal(t, 0, get.Succeeded)
	assert.Equal(t, 1, get.Faults)
	assert.Equal(t, 1.0, get.ErrorRate())
}

func TestReport_OpMissing(t *testing.T) {
	r := NewMonitor().Report()
	op := r.Op("delete")
	assert.Equal(t, "delete", op.Name)
	assert.Equal(t, 0.0, op.ErrorRate())
	assert.Equal(t, 0, op.Latency.N)
}

func TestRun_NoFaults(t *testing.T) {
	st, err := faultkv.New(faultkv.WithShardCount(3))
	require.NoError(t, err)
	defer st.Close()

	m := NewMonitor()
	require.NoError(t, Run(context.Background(), st, 100, m, nil))

	r := m.Report()
	assert.Equal(t, 100, r.Op(OpSet).Succeeded)
	assert.Equal(t, 100, r.Op(OpGet).Succeeded)
	assert.Equal(t, 0, r.Op(OpGet).Errors)

	got, err := st.Get(context.Background(), "key_42")
	require.NoError(t, err)
	assert.Equal(t, "value_42", string(got))
}

func TestRun_WithFaults(t *testing.T) {
	inj, err := fault.New(
		fault.Policy{FailureRate: 0.3, MaxLatency: time.Second},
		fault.WithRand(randsrc.New(5)),
		fault.WithClock(clock.NewVirtual(time.Unix(0, 0))),
	)
	require.NoError(t, err)
	st, err := faultkv.New(faultkv.WithInjector(inj))
	require.NoError(t, err)
	defer st.Close()

	m := NewMonitor()
	require.NoError(t, Run(context.Background(), st, 200, m, nil))

	r := m.Report()
	set, get := r.Op(OpSet), r.Op(OpGet)
	assert.Equal(t, 200, set.Total())
	assert.Positive(t, set.Faults)
	assert.Equal(t, set.Errors, set.Faults)
	// A get is only attempted after its set succeeded.
	assert.Equal(t, set.Succeeded, get.Total())
	assert.Positive(t, get.Faults)
}

func TestRun_Canceled(t *testing.T) {
	st, err := faultkv.New()
	require.NoError(t, err)
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = Run(ctx, st, 10, NewMonitor(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
