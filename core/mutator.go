package core

import (
	"log/slog"

	"github.com/encodeous/icntm/state"
	"github.com/encodeous/icntm/telemetry"
)

// FIDUpdate is a recomputed manager FID to push to one node.
type FIDUpdate struct {
	Node state.Label
	// Type is state.UpdateRVFID or state.UpdateTMFID.
	Type uint8
	FID  state.Bitmask
}

// Mutation describes the outcome of one link event.
type Mutation struct {
	// Changed is false for idempotent no-ops.
	Changed bool
	Removed bool
	// LIDs were retired or restored by this event.
	LIDs        []state.Bitmask
	Updates     []FIDUpdate
	Isolated    []state.Label
	Reconnected []state.Label
}

// Mutator is the only writer of link liveness and the per-node FID caches.
type Mutator struct {
	Topo     *state.Topology
	Router   Router
	Reporter telemetry.Reporter
	Log      *slog.Logger
}

func NewMutator(t *state.Topology, r Router, rep telemetry.Reporter, log *slog.Logger) *Mutator {
	if rep == nil {
		rep = telemetry.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mutator{Topo: t, Router: r, Reporter: rep, Log: log}
}

func (m *Mutator) reportLink(lid state.Bitmask, from, to state.NodeIdx, up bool) {
	t := m.Topo
	if err := m.Reporter.LinkState(lid, t.Label(from), t.Label(to), up); err != nil {
		m.Log.Warn("failed to report link state", "from", t.Label(from), "to", t.Label(to), "up", up, "error", err)
	}
}

// stale reports whether fid traverses any retired LID.
func stale(fid state.Bitmask, freed []state.Bitmask) bool {
	for _, lid := range freed {
		if fid.Contains(lid) {
			return true
		}
	}
	return false
}

// CalculateManagerFIDs recomputes the three cached FIDs of every node and
// returns the RV and TM FIDs that differ from the cached ones.
func (m *Mutator) CalculateManagerFIDs() []FIDUpdate {
	t := m.Topo
	var updates []FIDUpdate
	fromTM := m.Router.Search(t, t.TM)
	for _, idx := range t.SortedNodes() {
		n := t.Node(idx)
		tree := m.Router.Search(t, idx)
		rv := tree.Route(t.RV).FID
		tm := tree.Route(t.TM).FID
		if !rv.Equal(n.RVFID) {
			updates = append(updates, FIDUpdate{Node: n.Label, Type: state.UpdateRVFID, FID: rv})
		}
		if !tm.Equal(n.TMFID) {
			updates = append(updates, FIDUpdate{Node: n.Label, Type: state.UpdateTMFID, FID: tm})
		}
		n.RVFID = rv
		n.TMFID = tm
		n.TMToNode = fromTM.Route(idx).FID
	}
	return updates
}

// RemoveLink severs the directed edge from->to, and to->from as well when
// bidirectional. Edges that are already severed are left alone; if nothing
// was live the call is a no-op.
func (m *Mutator) RemoveLink(from, to state.Label, bidirectional bool) (Mutation, error) {
	t := m.Topo
	f, err := t.Lookup(from)
	if err != nil {
		return Mutation{}, err
	}
	d, err := t.Lookup(to)
	if err != nil {
		return Mutation{}, err
	}
	var mut Mutation
	retire := func(a, b state.NodeIdx) {
		if lid, ok := t.Retire(a, b); ok {
			mut.LIDs = append(mut.LIDs, lid)
			m.reportLink(lid, a, b, false)
		}
	}
	retire(f, d)
	if bidirectional {
		retire(d, f)
	}
	if len(mut.LIDs) == 0 {
		return mut, nil
	}
	mut.Changed = true
	mut.Removed = true
	m.Log.Info("link removed", "from", from, "to", to, "bidirectional", bidirectional, "lids", len(mut.LIDs))
	m.refreshAfterRemoval(&mut)
	return mut, nil
}

// refreshAfterRemoval recomputes every cached FID that crosses a retired LID.
// The TM->node direction goes first, since a node the TM can no longer reach
// cannot be handed new RV or TM FIDs.
func (m *Mutator) refreshAfterRemoval(mut *Mutation) {
	t := m.Topo
	freed := t.FreedLIDs()
	var fromTM *PathTree
	for _, idx := range t.SortedNodes() {
		n := t.Node(idx)
		if stale(n.TMToNode, freed) {
			if fromTM == nil {
				fromTM = m.Router.Search(t, t.TM)
			}
			n.TMToNode = fromTM.Route(idx).FID
		}
		if n.TMToNode.IsZero() {
			if !n.RVFID.IsZero() || !n.TMFID.IsZero() {
				m.Log.Info("node is now isolated", "node", n.Label)
				mut.Isolated = append(mut.Isolated, n.Label)
			}
			n.RVFID = t.ZeroFID()
			n.TMFID = t.ZeroFID()
			continue
		}
		var tree *PathTree
		if stale(n.RVFID, freed) {
			tree = m.Router.Search(t, idx)
			n.RVFID = tree.Route(t.RV).FID
			mut.Updates = append(mut.Updates, FIDUpdate{Node: n.Label, Type: state.UpdateRVFID, FID: n.RVFID})
		}
		if stale(n.TMFID, freed) {
			if tree == nil {
				tree = m.Router.Search(t, idx)
			}
			n.TMFID = tree.Route(t.TM).FID
			mut.Updates = append(mut.Updates, FIDUpdate{Node: n.Label, Type: state.UpdateTMFID, FID: n.TMFID})
		}
	}
}

// AddLink restores a severed edge with its original LID. Only edges held in
// the freed table can be restored; when bidirectional the reverse edge is
// restored too if it was severed.
func (m *Mutator) AddLink(from, to state.Label, bidirectional bool) (Mutation, error) {
	t := m.Topo
	f, err := t.Lookup(from)
	if err != nil {
		return Mutation{}, err
	}
	d, err := t.Lookup(to)
	if err != nil {
		return Mutation{}, err
	}
	var mut Mutation
	lid, ok := t.Restore(f, d)
	if !ok {
		return mut, nil
	}
	mut.LIDs = append(mut.LIDs, lid)
	m.reportLink(lid, f, d, true)
	if bidirectional {
		if lid, ok := t.Restore(d, f); ok {
			mut.LIDs = append(mut.LIDs, lid)
			m.reportLink(lid, d, f, true)
		}
	}
	mut.Changed = true
	m.Log.Info("link restored", "from", from, "to", to, "bidirectional", bidirectional, "lids", len(mut.LIDs))
	m.refreshAfterRestore(&mut)
	return mut, nil
}

// refreshAfterRestore reconnects nodes the TM could not reach, then fills in
// any RV or TM FID that is still zero for a reachable node.
func (m *Mutator) refreshAfterRestore(mut *Mutation) {
	t := m.Topo
	fromTM := m.Router.Search(t, t.TM)
	for _, idx := range t.SortedNodes() {
		n := t.Node(idx)
		if n.TMToNode.IsZero() {
			fid := fromTM.Route(idx).FID
			if fid.IsZero() {
				continue
			}
			m.Log.Info("node reconnected", "node", n.Label)
			n.TMToNode = fid
			tree := m.Router.Search(t, idx)
			n.RVFID = tree.Route(t.RV).FID
			n.TMFID = tree.Route(t.TM).FID
			mut.Reconnected = append(mut.Reconnected, n.Label)
			mut.Updates = append(mut.Updates,
				FIDUpdate{Node: n.Label, Type: state.UpdateRVFID, FID: n.RVFID},
				FIDUpdate{Node: n.Label, Type: state.UpdateTMFID, FID: n.TMFID},
			)
			continue
		}
		if !n.RVFID.IsZero() && !n.TMFID.IsZero() {
			continue
		}
		tree := m.Router.Search(t, idx)
		if n.RVFID.IsZero() {
			if fid := tree.Route(t.RV).FID; !fid.IsZero() {
				n.RVFID = fid
				mut.Updates = append(mut.Updates, FIDUpdate{Node: n.Label, Type: state.UpdateRVFID, FID: fid})
			}
		}
		if n.TMFID.IsZero() {
			if fid := tree.Route(t.TM).FID; !fid.IsZero() {
				n.TMFID = fid
				mut.Updates = append(mut.Updates, FIDUpdate{Node: n.Label, Type: state.UpdateTMFID, FID: fid})
			}
		}
	}
}
