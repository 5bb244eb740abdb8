// The request runner: drives one end-to-end entanglement demand through
// elementary generation on every path link, optional per-link purification,
// and left-to-right swapping at the relays. Expected protocol failures
// (lost attempts, failed purification, failed swaps) are state transitions
// handled here; only retry-budget exhaustion terminates a request.

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// RequestState is the lifecycle state of a request.
type RequestState string

const (
	RequestPending    RequestState = "pending"
	RequestInProgress RequestState = "in-progress"
	RequestSatisfied  RequestState = "satisfied"
	RequestFailed     RequestState = "failed"
)

// FailureReason says why a request failed permanently.
type FailureReason string

const (
	// ReasonPathExhausted: the full-path or purification retry budget ran out.
	ReasonPathExhausted FailureReason = "PathExhausted"
	// ReasonGenerationExhausted: a link ran out of optical attempts.
	ReasonGenerationExhausted FailureReason = "GenerationExhausted"
)

// Request is one end-to-end entanglement demand over a fixed path.
type Request struct {
	ID               string
	Path             []LinkID // ordered links from source to destination
	PathNodes        []NodeID // source, relays..., destination
	FidelityTarget   float64
	PurifyRounds     int
	MaxPathRetries   int
	MaxPurifyRetries int
	ArrivalTime      SimTime

	State RequestState
}

func (req *Request) String() string {
	return fmt.Sprintf("Request: (ID: %s, State: %s, hops: %d)", req.ID, req.State, len(req.Path))
}

// newRequest resolves a request config against the topology. Path edges must
// chain, appear once each, and every relay needs at least two memory slots
// or the swap at it could never be performed.
func newRequest(rc *RequestConfig, topo *Topology) (*Request, error) {
	links, nodes, err := topo.resolvePath(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("request %q: %w", rc.ID, err)
	}
	seen := make(map[LinkID]bool, len(links))
	for _, id := range links {
		if seen[id] {
			return nil, fmt.Errorf("request %q: link %q appears twice in path", rc.ID, topo.Link(id).Name)
		}
		seen[id] = true
	}
	seenNodes := make(map[NodeID]bool, len(nodes))
	for _, id := range nodes {
		if seenNodes[id] {
			return nil, fmt.Errorf("request %q: path visits node %q twice", rc.ID, topo.Node(id).Name)
		}
		seenNodes[id] = true
	}
	for _, relay := range nodes[1 : len(nodes)-1] {
		if topo.Node(relay).MemoryQubits < 2 {
			return nil, fmt.Errorf("request %q: relay %q needs at least 2 memory slots for swapping",
				rc.ID, topo.Node(relay).Name)
		}
	}
	return &Request{
		ID:               rc.ID,
		Path:             links,
		PathNodes:        nodes,
		FidelityTarget:   rc.FidelityTarget,
		PurifyRounds:     rc.PurifyRounds,
		MaxPathRetries:   rc.MaxPathRetries,
		MaxPurifyRetries: rc.MaxPurifyRetries,
		ArrivalTime:      FromSeconds(rc.ArrivalS),
		State:            RequestPending,
	}, nil
}

// runnerPhase is the coarse progress of a request runner.
type runnerPhase int

const (
	phasePending runnerPhase = iota
	phaseGenerating
	phaseSwapping
	phaseDone
)

// linkProgress is the per-path-link sub-state of a runner.
type linkProgress struct {
	ready      *EntangledPair // candidate pair for this link, possibly purified
	spare      *EntangledPair // second pair awaiting purification
	rounds     int            // purification rounds applied to ready
	done       bool           // ready pair accepted under the purification policy
	generating bool           // an EGP round on this link belongs to this runner

	retryEv  *retryGenerationEvent
	purifyEv *purifyEvent
}

// requestRunner owns all protocol progress for one request.
type requestRunner struct {
	sim      *Simulator
	req      *Request
	progress []linkProgress
	phase    runnerPhase

	chain []*EntangledPair // remaining pairs left-to-right during swapping

	generationRounds int // heralded pairs delivered to this runner
	pathRetries      int
	purifyRetries    int
}

func newRequestRunner(sim *Simulator, req *Request) *requestRunner {
	return &requestRunner{
		sim:      sim,
		req:      req,
		progress: make([]linkProgress, len(req.Path)),
	}
}

// start begins work: elementary generation on every path link. Links make
// progress independently in simulated time.
func (r *requestRunner) start(now SimTime) {
	r.req.State = RequestInProgress
	r.phase = phaseGenerating
	for i := range r.progress {
		r.startGeneration(now, i)
	}
}

// startGeneration asks the EGP of path link idx for a generation round. A
// busy link or terminal runner defers instead of erroring.
func (r *requestRunner) startGeneration(now SimTime, idx int) {
	if r.phase != phaseGenerating {
		return
	}
	lp := &r.progress[idx]
	lp.retryEv = nil
	if lp.generating || lp.done {
		return
	}
	link := r.req.Path[idx]
	if r.sim.egpFor(link).start(now, r) {
		lp.generating = true
		return
	}
	// Link busy with another requester: defer by one attempt interval.
	ev := &retryGenerationEvent{
		time:    now + r.sim.Topology.Link(link).AttemptInterval,
		runner:  r,
		pathIdx: idx,
	}
	lp.retryEv = ev
	r.sim.Schedule(ev)
}

// pairReady implements generationClient.
func (r *requestRunner) pairReady(now SimTime, link LinkID, pair *EntangledPair) {
	idx := r.pathIndex(link)
	lp := &r.progress[idx]
	lp.generating = false
	r.generationRounds++
	if lp.ready == nil {
		lp.ready = pair
	} else {
		lp.spare = pair
	}
	r.evaluateLink(now, idx)
}

// generationExhausted implements generationClient.
func (r *requestRunner) generationExhausted(now SimTime, link LinkID) {
	lp := &r.progress[r.pathIndex(link)]
	lp.generating = false
	logrus.Debugf("[%v] request %s: generation exhausted on link %s", now, r.req.ID, r.sim.Topology.Link(link).Name)
	r.fail(now, ReasonGenerationExhausted)
}

// evaluateLink applies the purification policy to path link idx: purify
// until the fidelity target is met or the round budget is spent, whichever
// first. A link whose candidate is accepted is marked done; when all links
// are done the swapping phase begins.
func (r *requestRunner) evaluateLink(now SimTime, idx int) {
	lp := &r.progress[idx]
	f := effectiveFidelity(r.sim.Topology, lp.ready, now)
	if r.req.PurifyRounds > 0 && lp.rounds < r.req.PurifyRounds && f < r.req.FidelityTarget {
		if lp.spare == nil {
			r.startGeneration(now, idx)
			return
		}
		ev := &purifyEvent{time: now, runner: r, pathIdx: idx}
		lp.purifyEv = ev
		r.sim.Schedule(ev)
		return
	}
	lp.done = true
	r.checkSwapReady(now)
}

// purify resolves one distillation round on path link idx. Both input pairs
// are consumed regardless of outcome.
func (r *requestRunner) purify(now SimTime, idx int) {
	sim := r.sim
	lp := &r.progress[idx]
	lp.purifyEv = nil
	ready, spare := lp.ready, lp.spare

	f1 := effectiveFidelity(sim.Topology, ready, now)
	f2 := effectiveFidelity(sim.Topology, spare, now)
	p, fOut := sim.distill.Outcome(f1, f2)
	sim.Metrics.PurifyAttempts++

	sim.Pairs.Consume(ready)
	sim.Pairs.Consume(spare)
	// The spare's slots are released either way; on success the output pair
	// takes over the ready pair's slots.
	sim.Memory.Release(spare.A, spare.SlotA)
	sim.Memory.Release(spare.B, spare.SlotB)

	if bernoulli(sim.rngFor("purify"), p) {
		sim.Metrics.PurifySuccesses++
		out := sim.Pairs.Create(ready.A, ready.B, ready.SlotA, ready.SlotB, fOut, now, 1)
		lp.ready, lp.spare = out, nil
		lp.rounds++
		logrus.Debugf("[%v] request %s: purified link %d to F=%.4f (round %d)", now, r.req.ID, idx, fOut, lp.rounds)
		r.evaluateLink(now, idx)
		return
	}

	sim.Memory.Release(ready.A, ready.SlotA)
	sim.Memory.Release(ready.B, ready.SlotB)
	lp.ready, lp.spare, lp.rounds = nil, nil, 0
	r.purifyRetries++
	logrus.Debugf("[%v] request %s: purification failed on link %d (retry %d)", now, r.req.ID, idx, r.purifyRetries)
	if r.purifyRetries > r.req.MaxPurifyRetries {
		r.fail(now, ReasonPathExhausted)
		return
	}
	r.startGeneration(now, idx)
}

// checkSwapReady enters the swapping phase once every path link holds an
// accepted pair. Single-hop requests deliver the elementary pair directly.
func (r *requestRunner) checkSwapReady(now SimTime) {
	for i := range r.progress {
		if !r.progress[i].done {
			return
		}
	}
	if len(r.req.Path) == 1 {
		pair := r.progress[0].ready
		r.progress[0].ready = nil
		r.deliver(now, pair)
		return
	}
	r.phase = phaseSwapping
	r.chain = r.chain[:0]
	for i := range r.progress {
		r.chain = append(r.chain, r.progress[i].ready)
		r.progress[i].ready = nil
	}
	r.sim.Schedule(&swapEvent{time: now, runner: r})
}

// swap resolves one entanglement swap at the leftmost remaining relay. On
// failure all path progress is discarded and the whole attempt is retried.
func (r *requestRunner) swap(now SimTime) {
	sim := r.sim
	left, right := r.chain[0], r.chain[1]
	relay := commonNode(left, right)
	node := sim.Topology.Node(relay)

	outerL, outerLSlot, leftRelaySlot := farEnd(left, relay)
	outerR, outerRSlot, rightRelaySlot := farEnd(right, relay)

	f1 := effectiveFidelity(sim.Topology, left, now)
	f2 := effectiveFidelity(sim.Topology, right, now)
	sim.Metrics.SwapAttempts++

	// The relay's two qubits are measured by the swap, so its slots free
	// regardless of outcome.
	sim.Pairs.Consume(left)
	sim.Pairs.Consume(right)
	sim.Memory.Release(relay, leftRelaySlot)
	sim.Memory.Release(relay, rightRelaySlot)

	if bernoulli(sim.rngFor("swap/"+node.Name), node.SwapSuccessProb) {
		sim.Metrics.SwapSuccesses++
		fOut := sim.swapper.Fuse(f1, f2)
		out := sim.Pairs.Create(outerL, outerR, outerLSlot, outerRSlot, fOut, now, left.Depth+right.Depth)
		logrus.Debugf("[%v] request %s: swap at %s succeeded, %v", now, r.req.ID, node.Name, out)
		rest := r.chain[2:]
		r.chain = append([]*EntangledPair{out}, rest...)
		if len(r.chain) == 1 {
			pair := r.chain[0]
			r.chain = nil
			r.deliver(now, pair)
			return
		}
		sim.Schedule(&swapEvent{time: now, runner: r})
		return
	}

	logrus.Debugf("[%v] request %s: swap at %s failed", now, r.req.ID, node.Name)
	sim.Memory.Release(outerL, outerLSlot)
	sim.Memory.Release(outerR, outerRSlot)
	for _, p := range r.chain[2:] {
		sim.discardPair(p)
	}
	r.chain = nil
	r.pathRetry(now)
}

// pathRetry restarts elementary generation on every link after a failed
// swap, bounded by the request's retry budget.
func (r *requestRunner) pathRetry(now SimTime) {
	r.pathRetries++
	if r.pathRetries > r.req.MaxPathRetries {
		r.fail(now, ReasonPathExhausted)
		return
	}
	r.phase = phaseGenerating
	for i := range r.progress {
		r.progress[i] = linkProgress{}
	}
	for i := range r.progress {
		r.startGeneration(now, i)
	}
}

// deliver hands the end-to-end pair to the requesting application and
// records the completed request. Delivery consumes the pair, freeing its
// slots for subsequent demands.
func (r *requestRunner) deliver(now SimTime, pair *EntangledPair) {
	achieved := effectiveFidelity(r.sim.Topology, pair, now)
	r.sim.discardPair(pair)
	r.phase = phaseDone
	r.req.State = RequestSatisfied
	logrus.Debugf("[%v] request %s: satisfied with F=%.4f", now, r.req.ID, achieved)
	r.record(now, achieved, "")
}

// fail terminates the request permanently and releases everything it holds.
func (r *requestRunner) fail(now SimTime, reason FailureReason) {
	r.cleanup()
	r.phase = phaseDone
	r.req.State = RequestFailed
	logrus.Debugf("[%v] request %s: failed (%s)", now, r.req.ID, reason)
	r.record(now, 0, reason)
}

func (r *requestRunner) record(now SimTime, fidelity float64, reason FailureReason) {
	outcome := OutcomeSatisfied
	if reason != "" {
		outcome = OutcomeFailed
	}
	r.sim.Metrics.addRecord(RequestRecord{
		ID:               r.req.ID,
		Outcome:          outcome,
		Reason:           reason,
		Fidelity:         fidelity,
		ArrivedAt:        r.req.ArrivalTime,
		CompletedAt:      now,
		GenerationRounds: r.generationRounds,
		PathRetries:      r.pathRetries,
		PurifyRetries:    r.purifyRetries,
	})
	r.sim.completedRunners++
}

// cleanup cancels pending events and discards every pair the runner holds.
func (r *requestRunner) cleanup() {
	for i := range r.progress {
		lp := &r.progress[i]
		if lp.retryEv != nil {
			lp.retryEv.cancel()
			lp.retryEv = nil
		}
		if lp.purifyEv != nil {
			lp.purifyEv.cancel()
			lp.purifyEv = nil
		}
		if lp.generating {
			r.sim.egpFor(r.req.Path[i]).reset()
			lp.generating = false
		}
		if lp.ready != nil {
			r.sim.discardPair(lp.ready)
			lp.ready = nil
		}
		if lp.spare != nil {
			r.sim.discardPair(lp.spare)
			lp.spare = nil
		}
	}
	for _, p := range r.chain {
		r.sim.discardPair(p)
	}
	r.chain = nil
}

func (r *requestRunner) pathIndex(link LinkID) int {
	for i, id := range r.req.Path {
		if id == link {
			return i
		}
	}
	panic(&ResourceInvariantError{
		Op:     "requestRunner.pathIndex",
		Detail: fmt.Sprintf("link %d is not on the path of request %s", link, r.req.ID),
	})
}

// commonNode returns the node shared by two adjacent pairs.
func commonNode(left, right *EntangledPair) NodeID {
	if left.A == right.A || left.A == right.B {
		return left.A
	}
	if left.B == right.A || left.B == right.B {
		return left.B
	}
	panic(&ResourceInvariantError{
		Op:     "commonNode",
		Detail: fmt.Sprintf("pairs %d and %d share no endpoint", left.ID, right.ID),
	})
}

// farEnd returns the endpoint of pair opposite to relay, its slot there,
// and the pair's slot at the relay.
func farEnd(pair *EntangledPair, relay NodeID) (NodeID, SlotID, SlotID) {
	if pair.A == relay {
		return pair.B, pair.SlotB, pair.SlotA
	}
	return pair.A, pair.SlotA, pair.SlotB
}
