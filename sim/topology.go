// The topology graph: an arena of nodes and links addressed by dense integer
// identifiers. Links reference their endpoints by NodeID rather than by
// pointer, so there are no ownership cycles between adjacent elements. The
// graph is built once at simulation start and its shape never changes.

package sim

import "fmt"

// NodeID indexes a node in the topology arena.
type NodeID int

// LinkID indexes a link in the topology arena.
type LinkID int

// Node is a repeater or end-station.
type Node struct {
	ID              NodeID
	Name            string
	MemoryQubits    int
	SwapSuccessProb float64
	DecayRate       float64
	Links           []LinkID // incident links, in definition order
}

// Link is an undirected physical channel between two adjacent nodes.
type Link struct {
	ID              LinkID
	Name            string
	A, B            NodeID
	LossProb        float64
	BaseFidelity    float64
	AttemptInterval SimTime
	HeraldingDelay  SimTime
	LengthKm        float64
}

// Topology holds the immutable node/link arenas of one scenario.
type Topology struct {
	nodes      []*Node
	links      []*Link
	nodeByName map[string]NodeID
	linkByName map[string]LinkID
}

// buildTopology constructs the arena from an already-validated scenario.
func buildTopology(cfg *ScenarioConfig) (*Topology, error) {
	t := &Topology{
		nodeByName: make(map[string]NodeID, len(cfg.Nodes)),
		linkByName: make(map[string]LinkID, len(cfg.Links)),
	}

	for i, nc := range cfg.Nodes {
		id := NodeID(i)
		t.nodes = append(t.nodes, &Node{
			ID:              id,
			Name:            nc.Name,
			MemoryQubits:    nc.MemoryQubits,
			SwapSuccessProb: nc.SwapSuccessProb,
			DecayRate:       nc.DecayRate,
		})
		t.nodeByName[nc.Name] = id
	}

	for i, lc := range cfg.Links {
		id := LinkID(i)
		a, ok := t.nodeByName[lc.A]
		if !ok {
			return nil, fmt.Errorf("link %q: dangling endpoint %q", lc.Name, lc.A)
		}
		b, ok := t.nodeByName[lc.B]
		if !ok {
			return nil, fmt.Errorf("link %q: dangling endpoint %q", lc.Name, lc.B)
		}
		t.links = append(t.links, &Link{
			ID:              id,
			Name:            lc.Name,
			A:               a,
			B:               b,
			LossProb:        lc.LossProb,
			BaseFidelity:    lc.BaseFidelity,
			AttemptInterval: FromSeconds(lc.AttemptIntervalS),
			HeraldingDelay:  FromSeconds(lc.HeraldingDelayS),
			LengthKm:        lc.LengthKm,
		})
		t.linkByName[lc.Name] = id
		t.nodes[a].Links = append(t.nodes[a].Links, id)
		t.nodes[b].Links = append(t.nodes[b].Links, id)
	}

	return t, nil
}

// Node returns the node with the given ID.
func (t *Topology) Node(id NodeID) *Node { return t.nodes[id] }

// Link returns the link with the given ID.
func (t *Topology) Link(id LinkID) *Link { return t.links[id] }

// NumNodes returns the number of nodes.
func (t *Topology) NumNodes() int { return len(t.nodes) }

// NumLinks returns the number of links.
func (t *Topology) NumLinks() int { return len(t.links) }

// NodeByName resolves a node name to its ID.
func (t *Topology) NodeByName(name string) (NodeID, bool) {
	id, ok := t.nodeByName[name]
	return id, ok
}

// LinkByName resolves a link name to its ID.
func (t *Topology) LinkByName(name string) (LinkID, bool) {
	id, ok := t.linkByName[name]
	return id, ok
}

// Peer returns the endpoint of link opposite to node.
func (t *Topology) Peer(link LinkID, node NodeID) NodeID {
	ln := t.links[link]
	if ln.A == node {
		return ln.B
	}
	return ln.A
}

// resolvePath maps link names to IDs and checks that consecutive links chain
// through a shared node. It returns the link IDs and the ordered node
// sequence src, relays..., dst.
func (t *Topology) resolvePath(names []string) ([]LinkID, []NodeID, error) {
	links := make([]LinkID, 0, len(names))
	for _, name := range names {
		id, ok := t.linkByName[name]
		if !ok {
			return nil, nil, fmt.Errorf("path edge %q is not a defined link", name)
		}
		links = append(links, id)
	}

	if len(links) == 1 {
		ln := t.links[links[0]]
		return links, []NodeID{ln.A, ln.B}, nil
	}

	// Orient the first link so that it chains into the second.
	first, second := t.links[links[0]], t.links[links[1]]
	var nodes []NodeID
	switch {
	case first.B == second.A || first.B == second.B:
		nodes = []NodeID{first.A, first.B}
	case first.A == second.A || first.A == second.B:
		nodes = []NodeID{first.B, first.A}
	default:
		return nil, nil, fmt.Errorf("path edges %q and %q do not share a node", first.Name, second.Name)
	}

	for i := 1; i < len(links); i++ {
		ln := t.links[links[i]]
		prev := nodes[len(nodes)-1]
		switch prev {
		case ln.A:
			nodes = append(nodes, ln.B)
		case ln.B:
			nodes = append(nodes, ln.A)
		default:
			return nil, nil, fmt.Errorf("path edge %q does not chain through node %q", ln.Name, t.nodes[prev].Name)
		}
	}

	return links, nodes, nil
}
