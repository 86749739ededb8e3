package core

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

var ErrNoDefaultQosPlane = errors.New("no QoS weight plane at or below the requested priority")

// PlaneWeight is the weight of a link with priority linkPrio in plane.
func PlaneWeight(plane, linkPrio uint8) uint32 {
	if plane < linkPrio {
		return state.Forbidden
	}
	if linkPrio >= state.MaxPriority {
		return 0
	}
	return uint32(state.MaxPriority - linkPrio)
}

// EnsurePlane creates the plane for prio if it is missing and reports whether it did.
func EnsurePlane(t *state.Topology, prio uint8) bool {
	if _, ok := t.Planes[prio]; ok {
		return false
	}
	w := make([]uint32, len(t.Links))
	for i := range t.Links {
		w[i] = PlaneWeight(prio, t.Links[i].Priority)
	}
	t.Planes[prio] = w
	return true
}

// DerivePlanes recomputes every weight of every plane from link priorities.
func DerivePlanes(t *state.Topology) {
	for prio, w := range t.Planes {
		for i := range t.Links {
			w[i] = PlaneWeight(prio, t.Links[i].Priority)
		}
	}
}

// InitPlanes creates one plane per priority present in the topology.
func InitPlanes(t *state.Topology) {
	for i := range t.Links {
		EnsurePlane(t, t.Links[i].Priority)
	}
	DerivePlanes(t)
}

// PlaneFor selects the plane for a requested priority: the exact plane if it
// exists, otherwise the closest lower one. A flow is never moved to a higher plane.
func PlaneFor(t *state.Topology, prio uint8) (uint8, error) {
	if _, ok := t.Planes[prio]; ok {
		return prio, nil
	}
	keys := slices.Sorted(maps.Keys(t.Planes))
	best := -1
	for _, k := range keys {
		if k <= prio {
			best = int(k)
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("%w: priority %d", ErrNoDefaultQosPlane, prio)
	}
	return uint8(best), nil
}

// RouterFor returns a weighted router on the plane selected for prio.
func RouterFor(t *state.Topology, prio uint8) (WeightedRouter, error) {
	plane, err := PlaneFor(t, prio)
	if err != nil {
		return WeightedRouter{}, err
	}
	return WeightedRouter{Priority: plane, Weights: t.Planes[plane]}, nil
}

// LinkStatusResult summarises what one link status report changed.
type LinkStatusResult struct {
	Link          state.LinkIdx
	PlaneCreated  bool
	Reprioritised bool
	Utilisation   bool
}

// ApplyLinkStatus records the attributes of one link status report. A new
// priority creates its plane if needed and re-derives every plane, since the
// admission of one link changes its weight in all of them.
func ApplyLinkStatus(t *state.Topology, st protocol.LinkStatus) (LinkStatusResult, error) {
	li, ok := t.LinkByLID(st.LID)
	if !ok {
		return LinkStatusResult{}, fmt.Errorf("unknown LID %s", st.LID)
	}
	res := LinkStatusResult{Link: li}
	l := t.Link(li)
	if v, ok := protocol.FindAttr(st.Attrs, state.AttrPriority); ok {
		prio := uint8(min(v, math.MaxUint8))
		res.PlaneCreated = EnsurePlane(t, prio)
		if l.Priority != prio || res.PlaneCreated {
			l.Priority = prio
			res.Reprioritised = true
			DerivePlanes(t)
		}
	}
	if v, ok := protocol.FindAttr(st.Attrs, state.AttrBandwidth); ok {
		l.Utilisation = float64(v)
		res.Utilisation = true
	}
	return res, nil
}
