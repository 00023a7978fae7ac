// Package fuzz drives randomized set/get trials against a store behind a
// fault injector and checks the round-trip invariant.
//
// Each trial generates a key and a value, asks the injector to admit the
// set, performs it, asks the injector to admit the get, performs it, and
// compares the result with what was written. Injected faults are counted,
// never raised. A mismatch after two admitted operations is a Violation,
// the only outcome that fails a run.
package fuzz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/discochess/faultkv/internal/store"
)

// Store is the key-value surface a trial exercises.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Admitter decides whether a simulated operation may proceed.
// *fault.Injector implements it.
type Admitter interface {
	Admit(ctx context.Context) error
}

// Router is optionally implemented by a Store to report key ownership
// in violations.
type Router interface {
	Route(key string) int
}

// Kind classifies the outcome of one trial.
type Kind int

const (
	// Passed means both operations were admitted and the value read back
	// equals the value written.
	Passed Kind = iota
	// FaultBeforeSet means the injector rejected the set.
	FaultBeforeSet
	// FaultBeforeGet means the injector rejected the get.
	FaultBeforeGet
	// Failed means the round-trip invariant did not hold.
	Failed
)

// String returns the outcome label used in logs and reports.
func (k Kind) String() string {
	switch k {
	case Passed:
		return "passed"
	case FaultBeforeSet:
		return "network-fault-before-set"
	case FaultBeforeGet:
		return "network-fault-before-get"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Faulted reports whether the trial ended on an injected fault.
func (k Kind) Faulted() bool {
	return k == FaultBeforeSet || k == FaultBeforeGet
}

// Outcome is the result of a single trial.
type Outcome struct {
	Kind      Kind
	Key       string
	Violation *Violation // Set only when Kind == Failed.
}

// Violation describes a round-trip invariant failure.
type Violation struct {
	Trial int    // Trial index within the run.
	Key   string // Key that was written.
	Shard int    // Owning shard, or -1 if the store does not route.
	Want  []byte // Value written by the set.
	Got   []byte // Value returned by the get.
	Found bool   // False if the get reported the key absent.
}

// Error implements error.
func (v *Violation) Error() string {
	got := fmt.Sprintf("%q", abbreviate(v.Got))
	if !v.Found {
		got = "<absent>"
	}
	return fmt.Sprintf("fuzz: trial %d: set %q (shard %d) = %q, but get returned %s",
		v.Trial, abbreviate([]byte(v.Key)), v.Shard, abbreviate(v.Want), got)
}

func abbreviate(b []byte) string {
	const limit = 32
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}

// compare checks the round-trip invariant for one trial.
func compare(trial int, key string, want, got []byte, getErr error) (*Violation, error) {
	found := true
	if getErr != nil {
		if !errors.Is(getErr, store.ErrNotFound) {
			return nil, getErr
		}
		found = false
	}
	if found && bytes.Equal(got, want) {
		return nil, nil
	}
	return &Violation{
		Trial: trial,
		Key:   key,
		Shard: -1,
		Want:  bytes.Clone(want),
		Got:   bytes.Clone(got),
		Found: found,
	}, nil
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomString draws a length in [minLen, maxLen] and fills it from alphabet.
func randomString(intn func(int) int, minLen, maxLen int) string {
	n := minLen + intn(maxLen-minLen+1)
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[intn(len(alphabet))])
	}
	return sb.String()
}
