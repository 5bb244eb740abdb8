// Contract-violation errors. Expected protocol outcomes (generation failure,
// purification failure, swap failure, allocation failure) are state-machine
// transitions, not errors; the types below indicate simulator corruption and
// abort the run via panic.

package sim

import "fmt"

// CausalityError reports an attempt to schedule an event before the current
// simulated clock. It is never retried: a rewind of simulated time means the
// scheduling component is broken.
type CausalityError struct {
	Now SimTime // clock at the time of the violation
	Due SimTime // requested due time
	Ev  string  // description of the offending event
}

func (e *CausalityError) Error() string {
	return fmt.Sprintf("causality violation: event %s due at %v but clock is already at %v", e.Ev, e.Due, e.Now)
}

// ResourceInvariantError reports a broken resource-ownership invariant, such
// as releasing a free memory slot or consuming an already-consumed pair.
type ResourceInvariantError struct {
	Op     string // operation that detected the violation
	Detail string
}

func (e *ResourceInvariantError) Error() string {
	return fmt.Sprintf("resource invariant violated in %s: %s", e.Op, e.Detail)
}
