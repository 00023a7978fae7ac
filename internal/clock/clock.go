// Package clock abstracts time so simulated latency can run against the
// wall clock in production and a virtual clock in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides the one suspension capability the simulation needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() if the context ended the wait.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

// Compile-time check that Real implements Clock.
var _ Clock = Real{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep waits on a timer.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Virtual is a clock whose Sleep returns immediately after advancing
// virtual time by d. It is safe for concurrent use.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
	calls int
}

// Compile-time check that Virtual implements Clock.
var _ Clock = (*Virtual)(nil)

// NewVirtual returns a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Sleep advances virtual time by d without blocking.
func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if d > 0 {
		v.now = v.now.Add(d)
		v.slept += d
	}
	v.calls++
	return nil
}

// Advance moves virtual time forward by d.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = v.now.Add(d)
}

// Slept returns the total duration passed to Sleep.
func (v *Virtual) Slept() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.slept
}

// Calls returns how many times Sleep was invoked.
func (v *Virtual) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}
