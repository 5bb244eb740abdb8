// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"

	"github.com/iti/rngstream"
	"github.com/sirupsen/logrus"
)

// queuedEvent pairs an event with its insertion sequence number. Events with
// equal due times dispatch in insertion order (FIFO), which makes the engine
// output fully deterministic given a seed.
type queuedEvent struct {
	ev  Event
	seq uint64
}

// EventQueue implements heap.Interface and orders events by (due time,
// insertion order).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type EventQueue []queuedEvent

func (eq EventQueue) Len() int { return len(eq) }
func (eq EventQueue) Less(i, j int) bool {
	if eq[i].ev.Timestamp() != eq[j].ev.Timestamp() {
		return eq[i].ev.Timestamp() < eq[j].ev.Timestamp()
	}
	return eq[i].seq < eq[j].seq
}
func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(queuedEvent))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// Simulator is the core object that holds simulated time, system state, and
// the event loop.
type Simulator struct {
	Clock   SimTime
	Horizon SimTime
	// EventQueue has all the pending simulator events
	EventQueue EventQueue
	seq        uint64

	Topology *Topology
	Memory   *MemoryPool
	Pairs    *PairRegister
	Metrics  *Metrics

	streams *streamSet
	distill DistillScheme
	swapper SwapScheme

	egps    []*linkEGP
	runners []*requestRunner

	// completedRunners counts requests that reached a terminal state, so
	// RunToCompletion can stop without draining retry events.
	completedRunners int
}

// NewSimulator validates cfg, builds the topology and all protocol state
// machines, and schedules the initial events. Configuration errors are
// returned before any event is scheduled.
//
// Not safe for concurrent use: seeding the rngstream package is a global
// operation, so simulators must be constructed one at a time (see
// RunReplications).
func NewSimulator(cfg *ScenarioConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	topo, err := buildTopology(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	distill, err := NewDistillScheme(cfg.DistillScheme)
	if err != nil {
		return nil, err
	}
	swapper, err := NewSwapScheme(cfg.SwapScheme)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		Clock:      0,
		Horizon:    FromSeconds(cfg.Duration),
		EventQueue: make(EventQueue, 0),
		Topology:   topo,
		Memory:     NewMemoryPool(topo),
		Pairs:      NewPairRegister(),
		Metrics:    NewMetrics(len(topo.links)),
		streams:    newStreamSet(cfg.Seed),
		distill:    distill,
		swapper:    swapper,
	}

	// Stream creation order is fixed: one per link, then one per node, then
	// the shared purification stream. Changing this order changes results.
	for _, ln := range topo.links {
		s.streams.create(fmt.Sprintf("egp/%s", ln.Name))
	}
	for _, nd := range topo.nodes {
		s.streams.create(fmt.Sprintf("swap/%s", nd.Name))
	}
	s.streams.create("purify")

	for _, ln := range topo.links {
		s.egps = append(s.egps, newLinkEGP(s, ln.ID, cfg.MaxAttemptsPerLink))
	}

	for i := range cfg.Requests {
		req, err := newRequest(&cfg.Requests[i], topo)
		if err != nil {
			return nil, err
		}
		runner := newRequestRunner(s, req)
		s.runners = append(s.runners, runner)
		s.Schedule(&startRequestEvent{time: req.ArrivalTime, runner: runner})
	}

	if cfg.Warmup > 0 {
		s.Schedule(&warmupEndEvent{time: FromSeconds(cfg.Warmup)})
	}
	if cfg.Progress && cfg.Duration > 0 {
		for pct := 10; pct <= 100; pct += 10 {
			t := SimTime(int64(s.Horizon) / 100 * int64(pct))
			s.Schedule(&progressEvent{time: t, percent: pct})
		}
	}

	return s, nil
}

// Schedule pushes an event into the pending queue. Scheduling an event in
// the simulated past is a contract violation and panics with *CausalityError;
// it indicates simulator corruption, never simulated-world behavior.
func (sim *Simulator) Schedule(ev Event) {
	if ev.Timestamp() < sim.Clock {
		panic(&CausalityError{Now: sim.Clock, Due: ev.Timestamp(), Ev: fmt.Sprintf("%T", ev)})
	}
	sim.seq++
	heap.Push(&sim.EventQueue, queuedEvent{ev: ev, seq: sim.seq})
}

// Run dispatches events in due-time order until the queue is empty or the
// horizon is reached. The clock only ever moves forward.
func (sim *Simulator) Run() {
	sim.RunUntil(nil)
}

// RunUntil is Run with an extra stop predicate, checked after every
// dispatched event.
func (sim *Simulator) RunUntil(stop func(*Simulator) bool) {
	for len(sim.EventQueue) > 0 {
		// Peek: an event beyond the horizon stays queued, so a later run with
		// an extended horizon still sees it.
		if sim.EventQueue[0].ev.Timestamp() > sim.Horizon {
			break
		}
		qe := heap.Pop(&sim.EventQueue).(queuedEvent)
		// canceled events are dropped without executing
		if c, ok := qe.ev.(cancelable); ok && c.canceled() {
			sim.Metrics.StaleDropped++
			continue
		}
		// advance the clock
		sim.Clock = qe.ev.Timestamp()
		logrus.Tracef("[%v] executing %T", sim.Clock, qe.ev)
		sim.Metrics.EventsProcessed++
		qe.ev.Execute(sim)
		if stop != nil && stop(sim) {
			break
		}
	}
	sim.Metrics.EndTime = sim.Clock
	logrus.Debugf("[%v] simulation ended after %d events", sim.Clock, sim.Metrics.EventsProcessed)
}

// RunToCompletion runs until every request has reached a terminal state or
// the horizon is hit.
func (sim *Simulator) RunToCompletion() {
	total := len(sim.runners)
	sim.RunUntil(func(s *Simulator) bool {
		return s.completedRunners == total
	})
}

// rngFor returns the named random stream. The stream must have been created
// during construction.
func (sim *Simulator) rngFor(name string) *rngstream.RngStream {
	return sim.streams.get(name)
}

func (sim *Simulator) egpFor(link LinkID) *linkEGP {
	return sim.egps[link]
}
