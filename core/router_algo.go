package core

import (
	"github.com/encodeous/icntm/state"
)

// FID computes the forwarding identifier from src to dst. An unreachable
// destination yields the zero mask, which callers must check with IsZero.
func FID(t *state.Topology, r Router, src, dst state.Label) (state.Bitmask, error) {
	route, err := FIDWithPath(t, r, src, dst)
	if err != nil {
		return state.Bitmask{}, err
	}
	return route.FID, nil
}

// FIDWithPath is FID with the hop count and traversed labels. Hops is
// state.Unreachable when no path exists.
func FIDWithPath(t *state.Topology, r Router, src, dst state.Label) (Route, error) {
	s, err := t.Lookup(src)
	if err != nil {
		return Route{}, err
	}
	d, err := t.Lookup(dst)
	if err != nil {
		return Route{}, err
	}
	return r.Search(t, s).Route(d), nil
}

type MatchResult struct {
	// FIDs has one entry per publisher. A zero FID means no subscriber was
	// assigned to that publisher and it must stop publishing.
	FIDs map[state.Label]state.Bitmask
	// Paths holds the distinct path vectors used by each publisher.
	Paths map[state.Label]state.Set[string]
}

// Active returns the publishers with a non-zero FID, sorted.
func (m MatchResult) Active() []state.Label {
	var out []state.Label
	for _, p := range state.SortLabels(mapKeys(m.FIDs)) {
		if !m.FIDs[p].IsZero() {
			out = append(out, p)
		}
	}
	return out
}

// Idle returns the publishers that were never chosen, sorted.
func (m MatchResult) Idle() []state.Label {
	var out []state.Label
	for _, p := range state.SortLabels(mapKeys(m.FIDs)) {
		if m.FIDs[p].IsZero() {
			out = append(out, p)
		}
	}
	return out
}

type candidate struct {
	label state.Label
	tree  *PathTree
}

func searchAll(t *state.Topology, r Router, labels []state.Label) ([]candidate, error) {
	idx, err := t.LookupAll(labels)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, len(idx))
	for i, n := range idx {
		out[i] = candidate{label: labels[i], tree: r.Search(t, n)}
	}
	return out, nil
}

// MatchPublishersToSubscribers assigns every subscriber to its nearest
// publisher and ORs the resulting FIDs per publisher. Publishers are tried in
// label order and a strictly better cost is needed to replace the current
// choice, so ties go to the smallest label. Subscribers unreachable from every
// publisher are left out.
func MatchPublishersToSubscribers(t *state.Topology, r Router, publishers, subscribers []state.Label) (MatchResult, error) {
	pubs := state.SortLabels(publishers)
	subs := state.SortLabels(subscribers)
	res := MatchResult{
		FIDs:  make(map[state.Label]state.Bitmask, len(pubs)),
		Paths: make(map[state.Label]state.Set[string], len(pubs)),
	}
	cands, err := searchAll(t, r, pubs)
	if err != nil {
		return MatchResult{}, err
	}
	subIdx, err := t.LookupAll(subs)
	if err != nil {
		return MatchResult{}, err
	}
	for _, p := range pubs {
		res.FIDs[p] = t.ZeroFID()
		res.Paths[p] = state.NewSet[string]()
	}
	for _, s := range subIdx {
		best := -1
		var bestCost uint64
		for i, c := range cands {
			cost, ok := c.tree.Cost(s)
			if !ok {
				continue
			}
			if best == -1 || cost < bestCost {
				best, bestCost = i, cost
			}
		}
		if best == -1 {
			continue
		}
		c := cands[best]
		route := c.tree.Route(s)
		res.FIDs[c.label] = res.FIDs[c.label].Or(route.FID)
		res.Paths[c.label].Add(route.PathVector())
	}
	return res, nil
}

type UnicastResult struct {
	// Chosen is the nearest reachable subscriber, empty when none is reachable.
	Chosen state.Label
	FID    state.Bitmask
	Path   string
	// FIDs has one entry per subscriber; only the chosen one is non-zero.
	FIDs map[state.Label]state.Bitmask
	// Alternates are the subscribers that were not chosen, sorted.
	Alternates []state.Label
}

// MatchUnicast picks the single nearest subscriber for a publisher, ties going
// to the smallest label.
func MatchUnicast(t *state.Topology, r Router, publisher state.Label, subscribers []state.Label) (UnicastResult, error) {
	pub, err := t.Lookup(publisher)
	if err != nil {
		return UnicastResult{}, err
	}
	subs := state.SortLabels(subscribers)
	subIdx, err := t.LookupAll(subs)
	if err != nil {
		return UnicastResult{}, err
	}
	res := UnicastResult{
		FID:  t.ZeroFID(),
		FIDs: make(map[state.Label]state.Bitmask, len(subs)),
	}
	tree := r.Search(t, pub)
	best := -1
	var bestCost uint64
	for i, s := range subIdx {
		res.FIDs[subs[i]] = t.ZeroFID()
		cost, ok := tree.Cost(s)
		if !ok {
			continue
		}
		if best == -1 || cost < bestCost {
			best, bestCost = i, cost
		}
	}
	for i, s := range subs {
		if i != best {
			res.Alternates = append(res.Alternates, s)
		}
	}
	if best == -1 {
		return res, nil
	}
	route := tree.Route(subIdx[best])
	res.Chosen = subs[best]
	res.FID = route.FID
	res.Path = route.PathVector()
	res.FIDs[res.Chosen] = route.FID
	return res, nil
}

// MatchImplicitSubscribers computes one FID per implicit subscriber, in the
// given order. Unreachable subscribers get the zero mask.
func MatchImplicitSubscribers(t *state.Topology, r Router, publisher state.Label, subscribers []state.Label) ([]state.Pair[state.Label, state.Bitmask], error) {
	pub, err := t.Lookup(publisher)
	if err != nil {
		return nil, err
	}
	subIdx, err := t.LookupAll(subscribers)
	if err != nil {
		return nil, err
	}
	tree := r.Search(t, pub)
	out := make([]state.Pair[state.Label, state.Bitmask], len(subIdx))
	for i, s := range subIdx {
		out[i] = state.Pair[state.Label, state.Bitmask]{V1: subscribers[i], V2: tree.Route(s).FID}
	}
	return out, nil
}
