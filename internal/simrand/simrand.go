// Package simrand provides the deterministic random stream used across the
// simulation. It is a plain 32-bit linear-congruential generator; every
// random decision in the core (faults, latency jitter, reply variants,
// drift draws) consumes from a stream so a seed reproduces a full run.
package simrand

// LCG parameters (numerical recipes).
const (
	multiplier = 1664525
	increment  = 1013904223
)

// Stream is a seeded deterministic random stream.
type Stream struct {
	seed  uint32
	state uint32
}

// New creates a stream seeded with seed.
func New(seed uint32) *Stream {
	return &Stream{seed: seed, state: seed}
}

// Seed returns the seed captured at construction.
func (s *Stream) Seed() uint32 { return s.seed }

// Reset rewinds the stream to its construction seed.
func (s *Stream) Reset() { s.state = s.seed }

// NextU32 advances the stream and returns the next 32-bit value.
func (s *Stream) NextU32() uint32 {
	s.state = s.state*multiplier + increment
	return s.state
}

// NextFloat returns the next value in [0, 1).
func (s *Stream) NextFloat() float64 {
	return float64(s.NextU32()) / 4294967296.0
}

// IntN returns a value in [a, b] inclusive. a > b is treated as [b, a].
func (s *Stream) IntN(a, b int64) int64 {
	if a > b {
		a, b = b, a
	}
	span := uint64(b-a) + 1
	return a + int64(uint64(s.NextU32())%span)
}
