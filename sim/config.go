// Scenario configuration: the static input consumed by the core. The
// surrounding CLI loads this from a YAML file and may override scalar run
// parameters via flags. All validation happens here or in buildTopology,
// before any event is scheduled; a malformed scenario is fatal.

package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeConfig describes one repeater or end-station.
type NodeConfig struct {
	Name            string  `yaml:"name"`
	MemoryQubits    int     `yaml:"memory_qubits"`     // finite qubit memory slots (must be > 0)
	SwapSuccessProb float64 `yaml:"swap_success_prob"` // probability a swap at this node succeeds
	DecayRate       float64 `yaml:"decay_rate"`        // fidelity decay rate of a stored qubit, 1/s (0 = no decay)
}

// LinkConfig describes one physical channel between two adjacent nodes.
type LinkConfig struct {
	Name             string  `yaml:"name"` // defaults to "<a>-<b>"
	A                string  `yaml:"a"`
	B                string  `yaml:"b"`
	LossProb         float64 `yaml:"loss_prob"`          // probability an optical attempt fails
	BaseFidelity     float64 `yaml:"base_fidelity"`      // fidelity of a freshly heralded pair
	AttemptIntervalS float64 `yaml:"attempt_interval_s"` // delay between consecutive attempts
	HeraldingDelayS  float64 `yaml:"heralding_delay_s"`  // classical confirmation delay
	LengthKm         float64 `yaml:"length_km"`          // channel length, informational
}

// RequestConfig describes one end-to-end entanglement demand.
type RequestConfig struct {
	ID               string   `yaml:"id"`
	Path             []string `yaml:"path"` // ordered link names from source to destination
	FidelityTarget   float64  `yaml:"fidelity_target"`
	PurifyRounds     int      `yaml:"purify_rounds"`      // max purification rounds per link (0 = no purification)
	MaxPathRetries   int      `yaml:"max_path_retries"`   // full-path retries after a failed swap or purification
	MaxPurifyRetries int      `yaml:"max_purify_retries"` // regenerations after failed purification, per link
	ArrivalS         float64  `yaml:"arrival_s"`
}

// ScenarioConfig is the root of a scenario file.
type ScenarioConfig struct {
	Duration           float64 `yaml:"duration_s"`
	Warmup             float64 `yaml:"warmup_s"`
	Seed               int64   `yaml:"seed"`
	MaxAttemptsPerLink int     `yaml:"max_attempts_per_link"` // optical attempts before GenerationExhausted (0 = unlimited)
	DistillScheme      string  `yaml:"distill_scheme"`        // "error-product" (default) or "dejmps"
	SwapScheme         string  `yaml:"swap_scheme"`           // "multiplicative" (default)
	Progress           bool    `yaml:"progress"`

	Nodes    []NodeConfig    `yaml:"nodes"`
	Links    []LinkConfig    `yaml:"links"`
	Requests []RequestConfig `yaml:"requests"`
}

// LoadScenario reads and parses a scenario file. Validation is separate so
// programmatically built configs go through the same checks.
func LoadScenario(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return &cfg, nil
}

func probabilityInRange(p float64) bool { return p >= 0.0 && p <= 1.0 }

// Validate checks every scalar range and cross-reference in the scenario.
// Path chaining is checked later, in newRequest, once link endpoints have
// been resolved.
func (c *ScenarioConfig) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration_s (%v) must be > 0", c.Duration)
	}
	if c.Warmup < 0 || c.Warmup >= c.Duration {
		return fmt.Errorf("warmup_s (%v) must be in [0, duration_s)", c.Warmup)
	}
	if c.Seed < 0 || c.Seed >= maxMasterSeed {
		return fmt.Errorf("seed (%d) must be in [0, %d)", c.Seed, int64(maxMasterSeed))
	}
	if c.MaxAttemptsPerLink < 0 {
		return fmt.Errorf("max_attempts_per_link (%d) must be >= 0", c.MaxAttemptsPerLink)
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("no nodes defined")
	}
	if len(c.Links) == 0 {
		return fmt.Errorf("no links defined")
	}

	nodeNames := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d has no name", i)
		}
		if nodeNames[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		nodeNames[n.Name] = true
		if n.MemoryQubits <= 0 {
			return fmt.Errorf("node %q: memory_qubits (%d) must be > 0", n.Name, n.MemoryQubits)
		}
		if !probabilityInRange(n.SwapSuccessProb) {
			return fmt.Errorf("node %q: swap_success_prob (%v) outside [0,1]", n.Name, n.SwapSuccessProb)
		}
		if n.DecayRate < 0 {
			return fmt.Errorf("node %q: decay_rate (%v) must be >= 0", n.Name, n.DecayRate)
		}
	}

	linkNames := make(map[string]bool, len(c.Links))
	for i := range c.Links {
		ln := &c.Links[i]
		if ln.Name == "" {
			ln.Name = ln.A + "-" + ln.B
		}
		if linkNames[ln.Name] {
			return fmt.Errorf("duplicate link name %q", ln.Name)
		}
		linkNames[ln.Name] = true
		if !nodeNames[ln.A] {
			return fmt.Errorf("link %q: endpoint %q is not a defined node", ln.Name, ln.A)
		}
		if !nodeNames[ln.B] {
			return fmt.Errorf("link %q: endpoint %q is not a defined node", ln.Name, ln.B)
		}
		if ln.A == ln.B {
			return fmt.Errorf("link %q: endpoints must differ", ln.Name)
		}
		if !probabilityInRange(ln.LossProb) {
			return fmt.Errorf("link %q: loss_prob (%v) outside [0,1]", ln.Name, ln.LossProb)
		}
		if !probabilityInRange(ln.BaseFidelity) {
			return fmt.Errorf("link %q: base_fidelity (%v) outside [0,1]", ln.Name, ln.BaseFidelity)
		}
		if ln.AttemptIntervalS <= 0 {
			return fmt.Errorf("link %q: attempt_interval_s (%v) must be > 0", ln.Name, ln.AttemptIntervalS)
		}
		if ln.HeraldingDelayS < 0 {
			return fmt.Errorf("link %q: heralding_delay_s (%v) must be >= 0", ln.Name, ln.HeraldingDelayS)
		}
	}

	reqIDs := make(map[string]bool, len(c.Requests))
	for i, r := range c.Requests {
		if r.ID == "" {
			return fmt.Errorf("request %d has no id", i)
		}
		if reqIDs[r.ID] {
			return fmt.Errorf("duplicate request id %q", r.ID)
		}
		reqIDs[r.ID] = true
		if len(r.Path) == 0 {
			return fmt.Errorf("request %q: empty path", r.ID)
		}
		for _, name := range r.Path {
			if !linkNames[name] {
				return fmt.Errorf("request %q: path edge %q is not a defined link", r.ID, name)
			}
		}
		if !probabilityInRange(r.FidelityTarget) {
			return fmt.Errorf("request %q: fidelity_target (%v) outside [0,1]", r.ID, r.FidelityTarget)
		}
		if r.PurifyRounds < 0 || r.MaxPathRetries < 0 || r.MaxPurifyRetries < 0 {
			return fmt.Errorf("request %q: retry budgets must be >= 0", r.ID)
		}
		if r.ArrivalS < 0 || r.ArrivalS > c.Duration {
			return fmt.Errorf("request %q: arrival_s (%v) outside [0, duration_s]", r.ID, r.ArrivalS)
		}
	}

	return nil
}
