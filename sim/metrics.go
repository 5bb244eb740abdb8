// Tracks run-wide counters and the completed-request record stream handed
// to the surrounding reporting layer. The record stream, written in
// completion order, is the determinism artifact: two runs with the same seed
// and configuration produce byte-identical streams.

package sim

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RequestOutcome is the terminal outcome of a request.
type RequestOutcome string

const (
	OutcomeSatisfied RequestOutcome = "satisfied"
	OutcomeFailed    RequestOutcome = "failed"
)

// RequestRecord is one completed-request record.
type RequestRecord struct {
	ID               string
	Outcome          RequestOutcome
	Reason           FailureReason // empty when satisfied
	Fidelity         float64       // end-to-end fidelity achieved (0 on failure)
	ArrivedAt        SimTime
	CompletedAt      SimTime
	GenerationRounds int // heralded pairs generated on the request's behalf
	PathRetries      int
	PurifyRetries    int
}

// LinkCounters aggregates per-link EGP activity.
type LinkCounters struct {
	Attempts      int64 // optical Bernoulli trials
	Successes     int64 // heralded pairs
	AllocFailures int64 // attempts deferred on memory exhaustion
}

// Metrics aggregates statistics about one simulation run.
type Metrics struct {
	EventsProcessed int64
	StaleDropped    int64
	EndTime         SimTime

	Links []LinkCounters // indexed by LinkID

	PurifyAttempts  int64
	PurifySuccesses int64
	SwapAttempts    int64
	SwapSuccesses   int64

	Records []RequestRecord
}

// NewMetrics sizes the per-link counters for numLinks links.
func NewMetrics(numLinks int) *Metrics {
	return &Metrics{Links: make([]LinkCounters, numLinks)}
}

func (m *Metrics) link(id LinkID) *LinkCounters { return &m.Links[id] }

func (m *Metrics) addRecord(rec RequestRecord) {
	m.Records = append(m.Records, rec)
}

// resetCounters clears the protocol statistics accumulated during warm-up,
// including completed records. The kernel counters (EventsProcessed,
// StaleDropped) are cumulative over the whole run and are left alone.
func (m *Metrics) resetCounters() {
	for i := range m.Links {
		m.Links[i] = LinkCounters{}
	}
	m.PurifyAttempts = 0
	m.PurifySuccesses = 0
	m.SwapAttempts = 0
	m.SwapSuccesses = 0
	m.Records = m.Records[:0]
}

// Satisfied returns the number of satisfied requests.
func (m *Metrics) Satisfied() int {
	n := 0
	for _, rec := range m.Records {
		if rec.Outcome == OutcomeSatisfied {
			n++
		}
	}
	return n
}

// Summary holds distribution statistics over the satisfied requests.
type Summary struct {
	Satisfied int
	Failed    int

	MeanFidelity   float64
	StddevFidelity float64

	MeanTimeToSuccessS float64 // completion - arrival, seconds
	P50TimeToSuccessS  float64
	P95TimeToSuccessS  float64
}

// Summarize computes distribution statistics over the completed records.
func (m *Metrics) Summarize() Summary {
	s := Summary{}
	var fidelities, times []float64
	for _, rec := range m.Records {
		if rec.Outcome != OutcomeSatisfied {
			s.Failed++
			continue
		}
		s.Satisfied++
		fidelities = append(fidelities, rec.Fidelity)
		times = append(times, (rec.CompletedAt - rec.ArrivedAt).Seconds())
	}
	if s.Satisfied == 0 {
		return s
	}
	s.MeanFidelity = stat.Mean(fidelities, nil)
	s.StddevFidelity = stat.StdDev(fidelities, nil)
	s.MeanTimeToSuccessS = stat.Mean(times, nil)
	sort.Float64s(times)
	s.P50TimeToSuccessS = stat.Quantile(0.50, stat.Empirical, times, nil)
	s.P95TimeToSuccessS = stat.Quantile(0.95, stat.Empirical, times, nil)
	return s
}

// WriteRecords writes the record stream in completion order, one line per
// record. The format is stable so byte-identical output can be compared
// across same-seed runs.
func (m *Metrics) WriteRecords(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "request_id,outcome,reason,fidelity,arrived_s,completed_s,generation_rounds,path_retries,purify_retries"); err != nil {
		return err
	}
	for _, rec := range m.Records {
		_, err := fmt.Fprintf(w, "%s,%s,%s,%.9f,%.9f,%.9f,%d,%d,%d\n",
			rec.ID, rec.Outcome, rec.Reason, rec.Fidelity,
			rec.ArrivedAt.Seconds(), rec.CompletedAt.Seconds(),
			rec.GenerationRounds, rec.PathRetries, rec.PurifyRetries)
		if err != nil {
			return err
		}
	}
	return nil
}

// Print displays aggregated metrics at the end of the run.
func (m *Metrics) Print(w io.Writer) {
	s := m.Summarize()
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Events processed     : %d (%d stale dropped)\n", m.EventsProcessed, m.StaleDropped)
	fmt.Fprintf(w, "Simulated time       : %v\n", m.EndTime)
	fmt.Fprintf(w, "Requests satisfied   : %d\n", s.Satisfied)
	fmt.Fprintf(w, "Requests failed      : %d\n", s.Failed)
	if s.Satisfied > 0 {
		fmt.Fprintf(w, "Mean fidelity        : %.4f (stddev %.4f)\n", s.MeanFidelity, s.StddevFidelity)
		fmt.Fprintf(w, "Time to success      : mean %.6fs, p50 %.6fs, p95 %.6fs\n",
			s.MeanTimeToSuccessS, s.P50TimeToSuccessS, s.P95TimeToSuccessS)
	}
	var attempts, successes int64
	for _, lc := range m.Links {
		attempts += lc.Attempts
		successes += lc.Successes
	}
	fmt.Fprintf(w, "Optical attempts     : %d (%d heralded)\n", attempts, successes)
	fmt.Fprintf(w, "Purifications        : %d/%d succeeded\n", m.PurifySuccesses, m.PurifyAttempts)
	fmt.Fprintf(w, "Swaps                : %d/%d succeeded\n", m.SwapSuccesses, m.SwapAttempts)
}
