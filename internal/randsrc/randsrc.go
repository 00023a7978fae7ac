// Package randsrc provides injectable random sources so simulation
// components never reach for a process-global generator.
package randsrc

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the entropy capability consumed by the simulation.
// Implementations must be safe for concurrent use.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64

	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// Locked is a PCG-backed Source guarded by a mutex.
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Compile-time check that Locked implements Source.
var _ Source = (*Locked)(nil)

// New returns a Locked source seeded with seed.
// A zero seed is replaced with the current time.
func New(seed uint64) *Locked {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Locked{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a value in [0, 1).
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// IntN returns a value in [0, n).
func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// Derive returns a child seed for the i-th independent generator.
// Distinct i values give uncorrelated streams for the same base seed.
func Derive(base uint64, i int) uint64 {
	// splitmix64 finalizer
	z := base + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Sequence replays a fixed list of draws, cycling when exhausted.
// Useful for deterministic tests.
type Sequence struct {
	mu    sync.Mutex
	draws []float64
	next  int
}

// Compile-time check that Sequence implements Source.
var _ Source = (*Sequence)(nil)

// NewSequence returns a Sequence over draws. Each draw should be in [0, 1).
func NewSequence(draws ...float64) *Sequence {
	if len(draws) == 0 {
		draws = []float64{0}
	}
	return &Sequence{draws: draws}
}

// Float64 returns the next draw.
func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.draws[s.next%len(s.draws)]
	s.next++
	return v
}

// IntN scales the next draw onto [0, n).
func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("randsrc: IntN called with n <= 0")
	}
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
