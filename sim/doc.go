// Package sim provides the core discrete-event simulation engine for the
// quantum link-layer simulator.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - event.go: Event types that drive the simulation (attempt, herald, purify, swap)
//   - simulator.go: The event queue, clock, and dispatch loop
//   - request.go: Request lifecycle (pending → in-progress → satisfied/failed)
//
// # Architecture
//
// The kernel owns simulated time and an ordered pending-event queue. Protocol
// state machines (egp.go, purify.go, swap.go) never block: all waiting is
// expressed by scheduling a future event. All state mutation happens inside
// event dispatch on a single goroutine, so topology, memory, and pair state
// need no locking. Host-level parallelism exists only across whole
// replications (replication.go), each with fully isolated state.
//
// # Key Interfaces
//
// The numeric protocol policies are pluggable:
//   - DistillScheme: success probability and output fidelity of purification
//   - SwapScheme: output fidelity of an entanglement swap
//
// Randomness is drawn from named rngstream streams owned by the Simulator,
// one per probabilistic subsystem, so runs are reproducible given a seed.
package sim
