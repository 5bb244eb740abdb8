package sim

// Shared scenario builders for tests.

// singleLinkScenario is two nodes joined by one link, with one single-hop
// request.
func singleLinkScenario(loss float64) *ScenarioConfig {
	return &ScenarioConfig{
		Duration: 100.0,
		Seed:     42,
		Nodes: []NodeConfig{
			{Name: "alice", MemoryQubits: 2, SwapSuccessProb: 1.0},
			{Name: "bob", MemoryQubits: 2, SwapSuccessProb: 1.0},
		},
		Links: []LinkConfig{
			{A: "alice", B: "bob", LossProb: loss, BaseFidelity: 0.9,
				AttemptIntervalS: 0.001, HeraldingDelayS: 0.0005},
		},
		Requests: []RequestConfig{
			{ID: "r1", Path: []string{"alice-bob"}, MaxPathRetries: 10},
		},
	}
}

// twoHopScenario is a linear alice - relay - bob topology with one two-hop
// request swapping at the relay.
func twoHopScenario() *ScenarioConfig {
	return &ScenarioConfig{
		Duration: 100.0,
		Seed:     42,
		Nodes: []NodeConfig{
			{Name: "alice", MemoryQubits: 2, SwapSuccessProb: 1.0},
			{Name: "relay", MemoryQubits: 4, SwapSuccessProb: 0.8},
			{Name: "bob", MemoryQubits: 2, SwapSuccessProb: 1.0},
		},
		Links: []LinkConfig{
			{A: "alice", B: "relay", LossProb: 0.5, BaseFidelity: 0.95,
				AttemptIntervalS: 0.001, HeraldingDelayS: 0.0005},
			{A: "relay", B: "bob", LossProb: 0.5, BaseFidelity: 0.95,
				AttemptIntervalS: 0.001, HeraldingDelayS: 0.0005},
		},
		Requests: []RequestConfig{
			{ID: "r1", Path: []string{"alice-relay", "relay-bob"}, MaxPathRetries: 50},
		},
	}
}

// chainScenario is a linear topology with the given number of hops, one
// request spanning it end to end.
func chainScenario(hops int, loss, swapProb float64, retries int) *ScenarioConfig {
	cfg := &ScenarioConfig{
		Duration: 1000.0,
		Seed:     42,
	}
	names := []string{"n0"}
	cfg.Nodes = append(cfg.Nodes, NodeConfig{Name: "n0", MemoryQubits: 4, SwapSuccessProb: swapProb})
	var path []string
	for i := 1; i <= hops; i++ {
		name := "n" + string(rune('0'+i))
		cfg.Nodes = append(cfg.Nodes, NodeConfig{Name: name, MemoryQubits: 4, SwapSuccessProb: swapProb})
		link := names[len(names)-1] + "-" + name
		cfg.Links = append(cfg.Links, LinkConfig{
			A: names[len(names)-1], B: name, LossProb: loss, BaseFidelity: 0.95,
			AttemptIntervalS: 0.001, HeraldingDelayS: 0.0005,
		})
		path = append(path, link)
		names = append(names, name)
	}
	cfg.Requests = []RequestConfig{
		{ID: "r1", Path: path, MaxPathRetries: retries},
	}
	return cfg
}
