// Whole-run replications. Independent replications of the same scenario
// with consecutive seeds are the only place the simulator uses host-level
// parallelism: each replication owns fully isolated state, so the runs
// share nothing but the immutable scenario.

package sim

import (
	"fmt"
	"sync"
)

// ReplicationResult is the outcome of one replication.
type ReplicationResult struct {
	Seed    int64
	Metrics *Metrics
	Err     error
}

// RunReplications executes n replications of cfg with seeds baseSeed,
// baseSeed+1, ..., and returns results in seed order.
//
// Simulators are constructed sequentially because rngstream seeding is a
// package-global operation; only the runs themselves proceed concurrently.
func RunReplications(cfg *ScenarioConfig, baseSeed int64, n int) ([]ReplicationResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("replication count (%d) must be > 0", n)
	}

	results := make([]ReplicationResult, n)
	sims := make([]*Simulator, n)
	for i := 0; i < n; i++ {
		seed := baseSeed + int64(i)
		results[i].Seed = seed
		repCfg := *cfg
		repCfg.Seed = seed
		s, err := NewSimulator(&repCfg)
		if err != nil {
			return nil, fmt.Errorf("replication %d (seed %d): %w", i, seed, err)
		}
		sims[i] = s
	}

	var wg sync.WaitGroup
	for i := range sims {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Contract violations abort the replication, not the process:
			// surface them as errors at the replication boundary.
			defer func() {
				if rec := recover(); rec != nil {
					results[i].Err = fmt.Errorf("replication %d aborted: %v", i, rec)
				}
			}()
			sims[i].Run()
			results[i].Metrics = sims[i].Metrics
		}(i)
	}
	wg.Wait()

	return results, nil
}
