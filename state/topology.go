package state

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrUnknownNode = errors.New("unknown node")

type NodeIdx int
type LinkIdx int

// Node is an arena entry. The FID caches are owned here and rewritten in place.
type Node struct {
	Label Label
	Name  string
	ILID  Bitmask
	Role  Role
	// Out lists outgoing link slots in load order, live or retired.
	Out []LinkIdx

	TMToNode Bitmask
	RVFID    Bitmask
	TMFID    Bitmask
}

type Link struct {
	LID  Bitmask
	From NodeIdx
	To   NodeIdx
	Name string
	// Live is false while the link's LID sits in the freed table.
	Live bool
	// Priority is the last QoS priority reported for the link.
	Priority uint8
	// Utilisation is the last reported load in bit/s.
	Utilisation float64
}

type EdgeKey struct {
	From NodeIdx
	To   NodeIdx
}

// Topology is the single-owner arena of nodes and links. Link slots are never
// reused for another edge, so per-link vectors stay aligned with link indices.
type Topology struct {
	FidLen int
	Mode   string
	TM     NodeIdx
	RV     NodeIdx
	RM     NodeIdx
	Nodes  []Node
	Links  []Link
	// Freed maps each severed directed edge to its retired LID.
	Freed map[EdgeKey]Bitmask
	// Planes maps a QoS priority to one weight per link slot.
	Planes map[uint8][]uint32
	// TEWeights is the traffic engineering weight per link slot, nil until computed.
	TEWeights []uint32

	byLabel map[Label]NodeIdx
	byLID   map[Bitmask]LinkIdx
	byPair  map[EdgeKey]LinkIdx
}

func NewTopology(fidLen int) *Topology {
	return &Topology{
		FidLen:  fidLen,
		Freed:   make(map[EdgeKey]Bitmask),
		Planes:  make(map[uint8][]uint32),
		byLabel: make(map[Label]NodeIdx),
		byLID:   make(map[Bitmask]LinkIdx),
		byPair:  make(map[EdgeKey]LinkIdx),
	}
}

func (t *Topology) FidBits() int {
	return t.FidLen * 8
}

// ZeroFID is the all-zero mask of the topology's width.
func (t *Topology) ZeroFID() Bitmask {
	return NewBitmask(t.FidBits())
}

func (t *Topology) AddNode(n Node) (NodeIdx, error) {
	if _, ok := t.byLabel[n.Label]; ok {
		return 0, fmt.Errorf("duplicate node %s", n.Label)
	}
	idx := NodeIdx(len(t.Nodes))
	n.Out = nil
	n.TMToNode = t.ZeroFID()
	n.RVFID = t.ZeroFID()
	n.TMFID = t.ZeroFID()
	t.Nodes = append(t.Nodes, n)
	t.byLabel[n.Label] = idx
	return idx, nil
}

func (t *Topology) AddLink(l Link) (LinkIdx, error) {
	key := EdgeKey{l.From, l.To}
	if _, ok := t.byPair[key]; ok {
		return 0, fmt.Errorf("duplicate edge found: %s, %s", t.Nodes[l.From].Label, t.Nodes[l.To].Label)
	}
	if _, ok := t.byLID[l.LID]; ok {
		return 0, fmt.Errorf("duplicate LID %s", l.LID)
	}
	idx := LinkIdx(len(t.Links))
	l.Live = true
	t.Links = append(t.Links, l)
	t.byPair[key] = idx
	t.byLID[l.LID] = idx
	t.Nodes[l.From].Out = append(t.Nodes[l.From].Out, idx)
	for p := range t.Planes {
		t.Planes[p] = append(t.Planes[p], Forbidden)
	}
	if t.TEWeights != nil {
		t.TEWeights = append(t.TEWeights, 1)
	}
	return idx, nil
}

func (t *Topology) Lookup(l Label) (NodeIdx, error) {
	idx, ok := t.byLabel[l]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNode, l)
	}
	return idx, nil
}

// LookupAll resolves every label or fails on the first miss.
func (t *Topology) LookupAll(labels []Label) ([]NodeIdx, error) {
	out := make([]NodeIdx, 0, len(labels))
	for _, l := range labels {
		idx, err := t.Lookup(l)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

func (t *Topology) Node(idx NodeIdx) *Node {
	return &t.Nodes[idx]
}

func (t *Topology) Link(idx LinkIdx) *Link {
	return &t.Links[idx]
}

func (t *Topology) Label(idx NodeIdx) Label {
	return t.Nodes[idx].Label
}

// LinkByLID finds the slot carrying lid, live or retired.
func (t *Topology) LinkByLID(lid Bitmask) (LinkIdx, bool) {
	idx, ok := t.byLID[lid]
	return idx, ok
}

// Edge finds the slot for a directed pair, live or retired.
func (t *Topology) Edge(from, to NodeIdx) (LinkIdx, bool) {
	idx, ok := t.byPair[EdgeKey{from, to}]
	return idx, ok
}

func (t *Topology) IsLive(from, to NodeIdx) bool {
	idx, ok := t.byPair[EdgeKey{from, to}]
	return ok && t.Links[idx].Live
}

// Retire severs a live edge and moves its LID into the freed table.
func (t *Topology) Retire(from, to NodeIdx) (Bitmask, bool) {
	key := EdgeKey{from, to}
	idx, ok := t.byPair[key]
	if !ok || !t.Links[idx].Live {
		return Bitmask{}, false
	}
	t.Links[idx].Live = false
	t.Freed[key] = t.Links[idx].LID
	return t.Links[idx].LID, true
}

// Restore re-inserts an edge held in the freed table, with its original LID.
func (t *Topology) Restore(from, to NodeIdx) (Bitmask, bool) {
	key := EdgeKey{from, to}
	lid, ok := t.Freed[key]
	if !ok {
		return Bitmask{}, false
	}
	idx := t.byPair[key]
	t.Links[idx].Live = true
	delete(t.Freed, key)
	return lid, true
}

// FreedLIDs returns the retired LIDs ordered by edge key.
func (t *Topology) FreedLIDs() []Bitmask {
	keys := slices.SortedFunc(maps.Keys(t.Freed), func(a, b EdgeKey) int {
		if a.From != b.From {
			return int(a.From) - int(b.From)
		}
		return int(a.To) - int(b.To)
	})
	out := make([]Bitmask, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.Freed[k])
	}
	return out
}

// SortedNodes returns node indices ordered by label.
func (t *Topology) SortedNodes() []NodeIdx {
	out := make([]NodeIdx, len(t.Nodes))
	for i := range t.Nodes {
		out[i] = NodeIdx(i)
	}
	slices.SortFunc(out, func(a, b NodeIdx) int {
		if t.Nodes[a].Label < t.Nodes[b].Label {
			return -1
		} else if t.Nodes[a].Label > t.Nodes[b].Label {
			return 1
		}
		return 0
	})
	return out
}
