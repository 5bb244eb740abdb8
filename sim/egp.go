// The entanglement generation protocol (EGP), one state machine per link.
// A generation round is a sequence of probabilistic optical attempts ending
// in a heralded pair or exhaustion of the attempt budget. At most one
// attempt is ever outstanding per link; a second requester is rejected and
// must defer.

package sim

import "github.com/sirupsen/logrus"

// LinkEGPState is the in-flight generation state of a link.
type LinkEGPState int

const (
	// LinkIdle means no generation round is in progress.
	LinkIdle LinkEGPState = iota
	// LinkAttempting means an optical attempt is outstanding.
	LinkAttempting
	// LinkHeralded means an attempt succeeded and the classical heralding
	// signal is in flight.
	LinkHeralded
)

// generationClient receives the outcome of a generation round.
type generationClient interface {
	pairReady(now SimTime, link LinkID, pair *EntangledPair)
	generationExhausted(now SimTime, link LinkID)
}

// linkEGP drives entanglement generation on one link.
type linkEGP struct {
	sim         *Simulator
	link        LinkID
	maxAttempts int // optical failures before the round is exhausted (0 = unlimited)

	state    LinkEGPState
	client   generationClient
	attempts int // failed optical attempts in the current round

	pendingAttempt *attemptEvent
	pendingHerald  *heraldEvent
}

func newLinkEGP(sim *Simulator, link LinkID, maxAttempts int) *linkEGP {
	return &linkEGP{sim: sim, link: link, maxAttempts: maxAttempts}
}

// start begins a generation round on behalf of client, with the first
// optical attempt fired immediately. It returns false if the link is busy
// with another round; the caller then defers and retries later.
func (g *linkEGP) start(now SimTime, client generationClient) bool {
	if g.state != LinkIdle {
		return false
	}
	g.state = LinkAttempting
	g.client = client
	g.attempts = 0
	g.scheduleAttempt(now)
	return true
}

func (g *linkEGP) scheduleAttempt(t SimTime) {
	ev := &attemptEvent{time: t, egp: g}
	g.pendingAttempt = ev
	g.sim.Schedule(ev)
}

// attempt resolves one optical Bernoulli trial.
func (g *linkEGP) attempt(now SimTime) {
	g.pendingAttempt = nil
	sim := g.sim
	ln := sim.Topology.Link(g.link)
	rng := sim.rngFor("egp/" + ln.Name)

	counters := sim.Metrics.link(g.link)
	counters.Attempts++

	if !bernoulli(rng, 1.0-ln.LossProb) {
		// Optical failure: retry after the attempt interval, bounded by the
		// attempt budget.
		g.attempts++
		if g.maxAttempts > 0 && g.attempts >= g.maxAttempts {
			logrus.Debugf("[%v] link %s: generation exhausted after %d attempts", now, ln.Name, g.attempts)
			client := g.finishRound()
			client.generationExhausted(now, g.link)
			return
		}
		g.scheduleAttempt(now + ln.AttemptInterval)
		return
	}

	// Optical success: a pair exists only if both endpoints can store it.
	// Slot exhaustion defers the round without counting an optical failure.
	slotA, ok := sim.Memory.TryAllocate(ln.A)
	if !ok {
		counters.AllocFailures++
		g.scheduleAttempt(now + ln.AttemptInterval)
		return
	}
	slotB, ok := sim.Memory.TryAllocate(ln.B)
	if !ok {
		sim.Memory.Release(ln.A, slotA)
		counters.AllocFailures++
		g.scheduleAttempt(now + ln.AttemptInterval)
		return
	}

	pair := sim.Pairs.Create(ln.A, ln.B, slotA, slotB, ln.BaseFidelity, now, 1)
	counters.Successes++
	g.state = LinkHeralded

	herald := &heraldEvent{time: now + ln.HeraldingDelay, egp: g, pair: pair}
	g.pendingHerald = herald
	sim.Schedule(herald)
	logrus.Debugf("[%v] link %s: heralded %v", now, ln.Name, pair)
}

// herald delivers a freshly generated pair to the requester. The link
// returns to Idle first, so the client may start the next round on this
// link from inside the callback.
func (g *linkEGP) herald(now SimTime, pair *EntangledPair) {
	g.pendingHerald = nil
	client := g.finishRound()
	client.pairReady(now, g.link, pair)
}

func (g *linkEGP) finishRound() generationClient {
	client := g.client
	g.state = LinkIdle
	g.client = nil
	g.attempts = 0
	return client
}

// reset abandons the current round: any outstanding attempt or herald event
// is marked stale, and a pair whose herald had not yet been delivered is
// discarded with its slots released.
func (g *linkEGP) reset() {
	if g.pendingAttempt != nil {
		g.pendingAttempt.cancel()
		g.pendingAttempt = nil
	}
	if g.pendingHerald != nil {
		g.pendingHerald.cancel()
		g.sim.discardPair(g.pendingHerald.pair)
		g.pendingHerald = nil
	}
	g.state = LinkIdle
	g.client = nil
	g.attempts = 0
}
