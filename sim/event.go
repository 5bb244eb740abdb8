// The full inventory of event kinds that drive the simulation. Each event
// carries its due time and an Execute method that advances simulator state
// when dispatched. Events are owned by the event queue until dispatched and
// are executed at most once.

package sim

import "github.com/sirupsen/logrus"

// Event defines the interface for all simulation events.
type Event interface {
	Timestamp() SimTime
	Execute(*Simulator)
}

// cancelable is implemented by events that can be invalidated after being
// scheduled (e.g., when a link resets while an attempt is pending). The
// kernel checks it at dispatch time and silently drops stale events.
type cancelable interface {
	canceled() bool
}

// cancelFlag is embedded by events that support cancellation.
type cancelFlag struct {
	stale bool
}

func (c *cancelFlag) cancel()        { c.stale = true }
func (c *cancelFlag) canceled() bool { return c.stale }

// === Link-level generation events ===

// attemptEvent fires one optical entanglement-generation attempt on a link.
type attemptEvent struct {
	cancelFlag
	time SimTime
	egp  *linkEGP
}

func (e *attemptEvent) Timestamp() SimTime { return e.time }

func (e *attemptEvent) Execute(sim *Simulator) {
	logrus.Tracef("<< Attempt: link %s at %v", sim.Topology.Link(e.egp.link).Name, e.time)
	e.egp.attempt(e.time)
}

// heraldEvent delivers the classical heralding signal confirming that a
// generation attempt succeeded, handing the fresh pair to the requester.
type heraldEvent struct {
	cancelFlag
	time SimTime
	egp  *linkEGP
	pair *EntangledPair
}

func (e *heraldEvent) Timestamp() SimTime { return e.time }

func (e *heraldEvent) Execute(sim *Simulator) {
	logrus.Tracef("<< Herald: link %s pair %d at %v", sim.Topology.Link(e.egp.link).Name, e.pair.ID, e.time)
	e.egp.herald(e.time, e.pair)
}

// === Request-level events ===

// startRequestEvent begins work on an end-to-end entanglement request.
type startRequestEvent struct {
	time   SimTime
	runner *requestRunner
}

func (e *startRequestEvent) Timestamp() SimTime { return e.time }

func (e *startRequestEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< StartRequest: %s at %v", e.runner.req.ID, e.time)
	e.runner.start(e.time)
}

// retryGenerationEvent re-attempts starting generation on a link that was
// busy or whose endpoints were out of memory at the previous attempt.
type retryGenerationEvent struct {
	cancelFlag
	time    SimTime
	runner  *requestRunner
	pathIdx int
}

func (e *retryGenerationEvent) Timestamp() SimTime { return e.time }

func (e *retryGenerationEvent) Execute(sim *Simulator) {
	e.runner.startGeneration(e.time, e.pathIdx)
}

// purifyEvent attempts one round of entanglement purification on the two
// pairs a runner holds for one path link.
type purifyEvent struct {
	cancelFlag
	time    SimTime
	runner  *requestRunner
	pathIdx int
}

func (e *purifyEvent) Timestamp() SimTime { return e.time }

func (e *purifyEvent) Execute(sim *Simulator) {
	e.runner.purify(e.time, e.pathIdx)
}

// swapEvent attempts one entanglement swap at the next relay node of a
// request whose path links all hold ready pairs.
type swapEvent struct {
	cancelFlag
	time   SimTime
	runner *requestRunner
}

func (e *swapEvent) Timestamp() SimTime { return e.time }

func (e *swapEvent) Execute(sim *Simulator) {
	e.runner.swap(e.time)
}

// === Run-control events ===

// warmupEndEvent resets the statistics counters so that transients from the
// warm-up period are excluded from reported results.
type warmupEndEvent struct {
	time SimTime
}

func (e *warmupEndEvent) Timestamp() SimTime { return e.time }

func (e *warmupEndEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< WarmupEnd at %v", e.time)
	sim.Metrics.resetCounters()
}

// progressEvent periodically logs how far the run has advanced.
type progressEvent struct {
	time    SimTime
	percent int
}

func (e *progressEvent) Timestamp() SimTime { return e.time }

func (e *progressEvent) Execute(sim *Simulator) {
	logrus.Infof("[%3d%%] clock %v, %d events processed", e.percent, sim.Clock, sim.Metrics.EventsProcessed)
}
