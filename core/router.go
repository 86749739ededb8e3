package core

import (
	"container/heap"
	"math"
	"slices"

	"github.com/encodeous/icntm/state"
)

// Router finds shortest paths over the live links of a topology. A search is
// read-only and runs to completion.
type Router interface {
	Search(t *state.Topology, src state.NodeIdx) *PathTree
	Name() string
}

const (
	noLink  state.LinkIdx = -1
	infCost uint64        = math.MaxUint64
)

// PathTree is the result of one single-source search.
type PathTree struct {
	topo     *state.Topology
	src      state.NodeIdx
	weighted bool
	cost     []uint64
	hops     []int
	via      []state.LinkIdx
}

func newPathTree(t *state.Topology, src state.NodeIdx, weighted bool) *PathTree {
	n := len(t.Nodes)
	p := &PathTree{
		topo:     t,
		src:      src,
		weighted: weighted,
		cost:     make([]uint64, n),
		hops:     make([]int, n),
		via:      make([]state.LinkIdx, n),
	}
	for i := range n {
		p.cost[i] = infCost
		p.hops[i] = state.Unreachable
		p.via[i] = noLink
	}
	p.cost[src] = 0
	p.hops[src] = 0
	return p
}

// Cost is the path cost to dst, false when dst is unreachable.
func (p *PathTree) Cost(dst state.NodeIdx) (uint64, bool) {
	return p.cost[dst], p.cost[dst] != infCost
}

// Route is a resolved path from the search source.
type Route struct {
	FID  state.Bitmask
	Hops int
	Cost uint64
	Path []state.Label
}

func (r Route) Reachable() bool {
	return r.Hops != state.Unreachable
}

func (r Route) PathVector() string {
	return state.PathVector(r.Path)
}

// Route walks the tree back from dst, OR-ing every traversed LID and the iLID of dst.
func (p *PathTree) Route(dst state.NodeIdx) Route {
	t := p.topo
	if p.cost[dst] == infCost {
		return Route{FID: t.ZeroFID(), Hops: state.Unreachable, Cost: infCost}
	}
	fid := t.Node(dst).ILID
	path := []state.Label{t.Label(dst)}
	for cur := dst; cur != p.src; {
		l := t.Link(p.via[cur])
		fid = fid.Or(l.LID)
		cur = l.From
		path = append(path, t.Label(cur))
	}
	slices.Reverse(path)
	hops := p.hops[dst]
	if p.weighted && dst == p.src {
		// a zero-link weighted path still counts as one hop
		hops = 1
	}
	return Route{FID: fid, Hops: hops, Cost: p.cost[dst], Path: path}
}

// BasicRouter minimises hop count with a breadth-first search.
type BasicRouter struct{}

func (BasicRouter) Name() string { return "basic" }

func (BasicRouter) Search(t *state.Topology, src state.NodeIdx) *PathTree {
	p := newPathTree(t, src, false)
	queue := []state.NodeIdx{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, li := range t.Node(cur).Out {
			l := t.Link(li)
			if !l.Live || p.cost[l.To] != infCost {
				continue
			}
			p.cost[l.To] = p.cost[cur] + 1
			p.hops[l.To] = p.hops[cur] + 1
			p.via[l.To] = li
			queue = append(queue, l.To)
		}
	}
	return p
}

// WeightedRouter minimises the summed weight of one QoS plane. Links weighing
// state.Forbidden are never used.
type WeightedRouter struct {
	Priority uint8
	Weights  []uint32
}

func (r WeightedRouter) Name() string { return "qos" }

func (r WeightedRouter) Search(t *state.Topology, src state.NodeIdx) *PathTree {
	return dijkstra(t, src, func(li state.LinkIdx) (uint64, bool) {
		if int(li) >= len(r.Weights) || r.Weights[li] == state.Forbidden {
			return 0, false
		}
		return uint64(r.Weights[li]), true
	})
}

// TrafficEngineeredRouter minimises the summed traffic engineering weights of
// the topology, falling back to hop count until weights are first computed.
type TrafficEngineeredRouter struct{}

func (TrafficEngineeredRouter) Name() string { return "te" }

func (TrafficEngineeredRouter) Search(t *state.Topology, src state.NodeIdx) *PathTree {
	if t.TEWeights == nil {
		return BasicRouter{}.Search(t, src)
	}
	return dijkstra(t, src, func(li state.LinkIdx) (uint64, bool) {
		return uint64(t.TEWeights[li]), true
	})
}

type queued struct {
	node state.NodeIdx
	cost uint64
}

type frontier []queued

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(queued)) }
func (f *frontier) Pop() any {
	old := *f
	x := old[len(old)-1]
	*f = old[:len(old)-1]
	return x
}

func dijkstra(t *state.Topology, src state.NodeIdx, weight func(state.LinkIdx) (uint64, bool)) *PathTree {
	p := newPathTree(t, src, true)
	done := make([]bool, len(t.Nodes))
	f := &frontier{{node: src}}
	for f.Len() > 0 {
		cur := heap.Pop(f).(queued)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		for _, li := range t.Node(cur.node).Out {
			l := t.Link(li)
			if !l.Live || done[l.To] {
				continue
			}
			w, ok := weight(li)
			if !ok {
				continue
			}
			next := cur.cost + w
			if next < p.cost[l.To] {
				p.cost[l.To] = next
				p.hops[l.To] = p.hops[cur.node] + 1
				p.via[l.To] = li
				heap.Push(f, queued{node: l.To, cost: next})
			}
		}
	}
	return p
}
