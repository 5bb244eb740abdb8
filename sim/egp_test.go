package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenClient collects generation outcomes and optionally restarts the
// round, emulating a requester that keeps a link busy.
type stubGenClient struct {
	sim     *Simulator
	link    LinkID
	pairs   []*EntangledPair
	exhaust int
	rounds  int // additional rounds to run after each delivery
}

func (c *stubGenClient) pairReady(now SimTime, link LinkID, pair *EntangledPair) {
	c.pairs = append(c.pairs, pair)
	c.sim.discardPair(pair)
	if c.rounds > 0 {
		c.rounds--
		c.sim.egpFor(c.link).start(now, c)
	}
}

func (c *stubGenClient) generationExhausted(now SimTime, link LinkID) {
	c.exhaust++
}

// egpHarness builds a one-link simulator with no requests.
func egpHarness(t *testing.T, loss float64, maxAttempts int) (*Simulator, *stubGenClient) {
	t.Helper()
	cfg := singleLinkScenario(loss)
	cfg.Requests = nil
	cfg.MaxAttemptsPerLink = maxAttempts
	cfg.Duration = 2000.0
	s, err := NewSimulator(cfg)
	require.NoError(t, err)
	return s, &stubGenClient{sim: s, link: 0}
}

func TestLinkEGP_PerfectLink_HeraldsAfterOneAttempt(t *testing.T) {
	// GIVEN a lossless link
	s, client := egpHarness(t, 0.0, 0)

	// WHEN one generation round runs
	require.True(t, s.egpFor(0).start(0, client))
	s.Run()

	// THEN exactly one attempt heralds one pair with the link's base fidelity
	require.Len(t, client.pairs, 1)
	assert.Equal(t, 0.9, client.pairs[0].Fidelity)
	assert.Equal(t, 1, client.pairs[0].Depth)
	assert.Equal(t, int64(1), s.Metrics.link(0).Attempts)
	assert.Equal(t, int64(1), s.Metrics.link(0).Successes)
	assert.Equal(t, LinkIdle, s.egpFor(0).state)
}

func TestLinkEGP_HeraldDelivery_UsesHeraldingDelay(t *testing.T) {
	// GIVEN a lossless link with a 0.5ms heralding delay
	s, client := egpHarness(t, 0.0, 0)
	require.True(t, s.egpFor(0).start(0, client))

	// WHEN the round completes
	s.Run()

	// THEN the clock stopped at the heralding delay
	assert.Equal(t, FromSeconds(0.0005), s.Clock)
}

func TestLinkEGP_AlwaysLossy_ExhaustsAttemptBudget(t *testing.T) {
	// GIVEN a link that loses every attempt and a budget of 5 attempts
	s, client := egpHarness(t, 1.0, 5)

	// WHEN the round runs out
	require.True(t, s.egpFor(0).start(0, client))
	s.Run()

	// THEN the requester is told the round is exhausted and the link is idle
	assert.Empty(t, client.pairs)
	assert.Equal(t, 1, client.exhaust)
	assert.Equal(t, int64(5), s.Metrics.link(0).Attempts)
	assert.Equal(t, int64(0), s.Metrics.link(0).Successes)
	assert.Equal(t, LinkIdle, s.egpFor(0).state)
}

func TestLinkEGP_OneOutstandingRoundPerLink(t *testing.T) {
	// GIVEN a link with a round in progress
	s, client := egpHarness(t, 0.5, 0)
	require.True(t, s.egpFor(0).start(0, client))

	// WHEN a second requester asks for the link
	other := &stubGenClient{sim: s, link: 0}
	started := s.egpFor(0).start(0, other)

	// THEN it is rejected rather than queued
	assert.False(t, started)
}

func TestLinkEGP_SlotExhaustion_DefersWithoutCountingOpticalFailure(t *testing.T) {
	// GIVEN a lossless link whose alice endpoint is out of memory
	s, client := egpHarness(t, 0.0, 2)
	alice, _ := s.Topology.NodeByName("alice")
	s.Memory.TryAllocate(alice)
	s.Memory.TryAllocate(alice) // capacity 2, now full

	require.True(t, s.egpFor(0).start(0, client))

	// WHEN several attempts fail on allocation
	s.RunUntil(func(sm *Simulator) bool { return sm.Metrics.link(0).AllocFailures >= 3 })

	// THEN the round is still alive despite the 2-attempt budget: slot
	// exhaustion is not an optical failure
	assert.Equal(t, 0, client.exhaust)
	assert.Equal(t, LinkAttempting, s.egpFor(0).state)
	assert.GreaterOrEqual(t, s.Metrics.link(0).AllocFailures, int64(3))

	// WHEN memory frees up
	s.Memory.Release(alice, 0)
	s.Run()

	// THEN the round completes
	assert.Len(t, client.pairs, 1)
}

func TestLinkEGP_Reset_CancelsOutstandingWork(t *testing.T) {
	// GIVEN a round with an attempt outstanding
	s, client := egpHarness(t, 0.5, 0)
	require.True(t, s.egpFor(0).start(0, client))

	// WHEN the round is abandoned
	s.egpFor(0).reset()
	s.Run()

	// THEN nothing is delivered, the stale attempt is dropped, and no
	// resources leak
	assert.Empty(t, client.pairs)
	assert.Equal(t, LinkIdle, s.egpFor(0).state)
	assert.Equal(t, int64(1), s.Metrics.StaleDropped)
	assert.Equal(t, 0, s.Pairs.Live())
	assert.Equal(t, s.Memory.TotalAllocated, s.Memory.TotalReleased)
}

func TestLinkEGP_MeanAttemptsToSuccess_HalfLoss(t *testing.T) {
	// GIVEN a link with loss probability 0.5 and unlimited retries
	s, client := egpHarness(t, 0.5, 0)
	client.rounds = 9999 // 10000 rounds total

	// WHEN 10000 generation rounds complete
	require.True(t, s.egpFor(0).start(0, client))
	s.Run()

	// THEN attempts-to-success averages ~2 (geometric with p=0.5)
	require.Equal(t, int64(10000), s.Metrics.link(0).Successes)
	mean := float64(s.Metrics.link(0).Attempts) / float64(s.Metrics.link(0).Successes)
	assert.InDelta(t, 2.0, mean, 0.1)
}
