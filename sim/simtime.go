// Defines SimTime, the simulated clock type, and conversions between
// seconds (used in configuration) and nanosecond ticks (used internally).

package sim

import "fmt"

// SimTime is a point in simulated time, in nanosecond ticks from the start
// of the run. It is the priority key of the event queue. No component ever
// reads wall-clock time; the Simulator is the sole mutator of the clock.
type SimTime int64

const ticksPerSecond = 1e9

// FromSeconds converts a duration in seconds to simulated ticks.
func FromSeconds(s float64) SimTime {
	return SimTime(s*ticksPerSecond + 0.5)
}

// Seconds converts a SimTime to seconds.
func (t SimTime) Seconds() float64 {
	return float64(t) / ticksPerSecond
}

func (t SimTime) String() string {
	return fmt.Sprintf("%.9fs", t.Seconds())
}
