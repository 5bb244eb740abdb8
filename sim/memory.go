// The qubit memory resource manager. Each node owns a finite pool of memory
// slots; a slot is exclusively held by at most one live entangled pair.
// Allocation failure is a normal, expected outcome (the caller defers and
// retries via a scheduled event); releasing a free slot or a slot that was
// never allocated is a contract violation.

package sim

import "fmt"

// SlotID identifies one memory slot within a node.
type SlotID int

// nodePool tracks slot occupancy for a single node.
type nodePool struct {
	capacity int
	occupied []bool // indexed by SlotID
	inUse    int
}

// MemoryPool grants and releases memory slots across all nodes. It also
// keeps running allocation/release totals so that resource conservation
// (every allocated slot eventually released) can be checked at end of run.
type MemoryPool struct {
	pools []nodePool // indexed by NodeID

	TotalAllocated int64
	TotalReleased  int64
}

// NewMemoryPool sizes one pool per topology node.
func NewMemoryPool(topo *Topology) *MemoryPool {
	m := &MemoryPool{pools: make([]nodePool, topo.NumNodes())}
	for i, nd := range topo.nodes {
		m.pools[i] = nodePool{
			capacity: nd.MemoryQubits,
			occupied: make([]bool, nd.MemoryQubits),
		}
	}
	return m
}

// TryAllocate claims the lowest-numbered free slot at node. The second
// return is false when the node is at capacity; this is not an error.
func (m *MemoryPool) TryAllocate(node NodeID) (SlotID, bool) {
	p := &m.pools[node]
	for i := range p.occupied {
		if !p.occupied[i] {
			p.occupied[i] = true
			p.inUse++
			m.TotalAllocated++
			return SlotID(i), true
		}
	}
	return 0, false
}

// Release frees a previously allocated slot. Releasing a slot that is not
// held panics with *ResourceInvariantError: it means two owners believed
// they held the same slot, i.e. the simulator state is corrupt.
func (m *MemoryPool) Release(node NodeID, slot SlotID) {
	p := &m.pools[node]
	if int(slot) < 0 || int(slot) >= p.capacity {
		panic(&ResourceInvariantError{
			Op:     "MemoryPool.Release",
			Detail: fmt.Sprintf("slot %d out of range for node %d (capacity %d)", slot, node, p.capacity),
		})
	}
	if !p.occupied[slot] {
		panic(&ResourceInvariantError{
			Op:     "MemoryPool.Release",
			Detail: fmt.Sprintf("double release of slot %d at node %d", slot, node),
		})
	}
	p.occupied[slot] = false
	p.inUse--
	m.TotalReleased++
}

// InUse returns the number of occupied slots at node.
func (m *MemoryPool) InUse(node NodeID) int {
	return m.pools[node].inUse
}

// Occupancy returns the fraction of occupied slots at node.
func (m *MemoryPool) Occupancy(node NodeID) float64 {
	p := &m.pools[node]
	if p.capacity == 0 {
		return 0.0
	}
	return float64(p.inUse) / float64(p.capacity)
}
