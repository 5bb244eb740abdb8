// The entangled-pair register. Every live pair is registered exactly once at
// creation (by generation, purification, or swapping) and consumed exactly
// once (as protocol input, on delivery, or on discard). Consuming a pair
// twice indicates simulator corruption.

package sim

import (
	"fmt"
	"math"
)

// PairID identifies an entangled pair for its whole lifetime.
type PairID uint64

// EntangledPair is two qubits, one per endpoint node, characterized by a
// scalar fidelity. The pair owns one memory slot at each endpoint until it
// is consumed.
type EntangledPair struct {
	ID           PairID
	A, B         NodeID
	SlotA, SlotB SlotID
	Fidelity     float64 // fidelity at creation time
	Created      SimTime
	Depth        int // number of elementary hops this pair spans

	consumed bool
}

// String implements fmt.Stringer.
func (p *EntangledPair) String() string {
	return fmt.Sprintf("pair %d (%d<->%d, F=%.4f, depth %d)", p.ID, p.A, p.B, p.Fidelity, p.Depth)
}

// PairRegister tracks all live entangled pairs of a run.
type PairRegister struct {
	pairs  map[PairID]*EntangledPair
	nextID PairID

	TotalCreated int64
}

// NewPairRegister returns an empty register.
func NewPairRegister() *PairRegister {
	return &PairRegister{pairs: make(map[PairID]*EntangledPair)}
}

// Create registers a new live pair. Fidelity outside [0,1] panics: schemes
// are contractually required to stay in range, so an excursion means a
// broken scheme implementation rather than simulated-world behavior.
func (r *PairRegister) Create(a, b NodeID, slotA, slotB SlotID, fidelity float64, now SimTime, depth int) *EntangledPair {
	if fidelity < 0.0 || fidelity > 1.0 || math.IsNaN(fidelity) {
		panic(&ResourceInvariantError{
			Op:     "PairRegister.Create",
			Detail: fmt.Sprintf("fidelity %v outside [0,1]", fidelity),
		})
	}
	p := &EntangledPair{
		ID:       r.nextID,
		A:        a,
		B:        b,
		SlotA:    slotA,
		SlotB:    slotB,
		Fidelity: fidelity,
		Created:  now,
		Depth:    depth,
	}
	r.pairs[p.ID] = p
	r.nextID++
	r.TotalCreated++
	return p
}

// Consume removes a live pair from the register. The caller remains
// responsible for releasing the pair's memory slots.
func (r *PairRegister) Consume(p *EntangledPair) {
	if p.consumed {
		panic(&ResourceInvariantError{
			Op:     "PairRegister.Consume",
			Detail: fmt.Sprintf("pair %d consumed twice", p.ID),
		})
	}
	if _, ok := r.pairs[p.ID]; !ok {
		panic(&ResourceInvariantError{
			Op:     "PairRegister.Consume",
			Detail: fmt.Sprintf("pair %d not registered", p.ID),
		})
	}
	p.consumed = true
	delete(r.pairs, p.ID)
}

// Live returns the number of currently live pairs.
func (r *PairRegister) Live() int { return len(r.pairs) }

// discardPair consumes a pair and releases both of its memory slots. Used
// whenever a pair is dropped on protocol failure, abandonment, or delivery.
func (sim *Simulator) discardPair(p *EntangledPair) {
	sim.Pairs.Consume(p)
	sim.Memory.Release(p.A, p.SlotA)
	sim.Memory.Release(p.B, p.SlotB)
}

// effectiveFidelity returns the pair's fidelity after decay in memory. A
// stored qubit decays toward the fully mixed value 1/4 at the larger of the
// two endpoints' decay rates; rate 0 (the default) disables decay. Fidelity
// already at or below 1/4 is left untouched so decay never raises it.
func effectiveFidelity(topo *Topology, p *EntangledPair, now SimTime) float64 {
	rate := math.Max(topo.Node(p.A).DecayRate, topo.Node(p.B).DecayRate)
	if rate == 0 || p.Fidelity <= 0.25 || now <= p.Created {
		return p.Fidelity
	}
	dt := (now - p.Created).Seconds()
	return 0.25 + (p.Fidelity-0.25)*math.Exp(-rate*dt)
}
