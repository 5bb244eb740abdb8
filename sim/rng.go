// Deterministic randomness. Every probabilistic decision point draws from a
// named rngstream stream owned by the simulation run; there is no
// process-wide implicit generator in the hot path. Streams are created in a
// fixed order during construction, so two runs with the same seed and
// configuration draw identical sequences.

package sim

import (
	"fmt"

	"github.com/iti/rngstream"
)

// maxMasterSeed bounds the scenario seed. rngstream derives its six-component
// L'Ecuyer state from the master seed without validating it; a seed at or
// above the smaller recurrence modulus (or a negative one cast to uint64)
// degenerates every stream into a constant sequence. Validate rejects such
// seeds before any stream is created.
const maxMasterSeed = 4294944443

// streamSet holds the named random streams of one simulation run.
//
// The rngstream package derives each new stream from package-global state
// seeded by SetRngStreamMasterSeed, so streamSet construction (and hence
// Simulator construction) must not run concurrently with another run's.
type streamSet struct {
	streams map[string]*rngstream.RngStream
}

func newStreamSet(seed int64) *streamSet {
	rngstream.SetRngStreamMasterSeed(uint64(seed))
	return &streamSet{streams: make(map[string]*rngstream.RngStream)}
}

// create registers a new stream under name. Call order is part of the
// reproducibility contract.
func (s *streamSet) create(name string) {
	if _, ok := s.streams[name]; ok {
		panic(&ResourceInvariantError{Op: "streamSet.create", Detail: fmt.Sprintf("duplicate stream %q", name)})
	}
	s.streams[name] = rngstream.New(name)
}

// get returns a previously created stream. Looking up an unknown stream is a
// programming error: creating it lazily here would make stream creation order
// depend on event order.
func (s *streamSet) get(name string) *rngstream.RngStream {
	rng, ok := s.streams[name]
	if !ok {
		panic(&ResourceInvariantError{Op: "streamSet.get", Detail: fmt.Sprintf("unknown stream %q", name)})
	}
	return rng
}

// bernoulli draws a single trial with success probability p.
func bernoulli(rng *rngstream.RngStream, p float64) bool {
	return rng.RandU01() < p
}
