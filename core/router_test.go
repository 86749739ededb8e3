package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/icntm/state"
)

var (
	lA = state.MockLabel("A")
	lB = state.MockLabel("B")
	lC = state.MockLabel("C")
	lD = state.MockLabel("D")
)

func mask(s string) state.Bitmask {
	return state.MustParseBitmask(s)
}

// A <-> B <-> C with one-byte masks
func chainTopology() *state.Topology {
	return state.NewMockTopology(1).
		Node("A", "10000000").Node("B", "01000000").Node("C", "00000100").
		Link("A", "B", "00000001", "00100000").
		Link("B", "C", "00000010", "00010000").
		Build()
}

// A-C is direct but low priority, A-B-C is longer with higher priority links
func triangleTopology() *state.Topology {
	return state.NewMockTopology(2).
		Node("A").Node("B").Node("C").
		Link("A", "B").Link("B", "C").Link("A", "C").
		Priority("A", "B", 60).Priority("B", "C", 60).
		Build()
}

func TestFIDOverChain(t *testing.T) {
	topo := chainTopology()

	fid, err := FID(topo, BasicRouter{}, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, "00000111", fid.String())

	fid, err = FID(topo, BasicRouter{}, lC, lA)
	require.NoError(t, err)
	assert.Equal(t, "10110000", fid.String())

	route, err := FIDWithPath(topo, BasicRouter{}, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, 2, route.Hops)
	assert.Equal(t, []state.Label{lA, lB, lC}, route.Path)
	assert.Equal(t, string(lA)+"->"+string(lB)+"->"+string(lC), route.PathVector())
}

func TestFIDToSelf(t *testing.T) {
	topo := triangleTopology()
	a, _ := topo.Lookup(lA)

	route, err := FIDWithPath(topo, BasicRouter{}, lA, lA)
	require.NoError(t, err)
	assert.Equal(t, 0, route.Hops)
	assert.Equal(t, topo.Node(a).ILID, route.FID)

	InitPlanes(topo)
	r, err := RouterFor(topo, 0)
	require.NoError(t, err)
	route, err = FIDWithPath(topo, r, lA, lA)
	require.NoError(t, err)
	assert.Equal(t, 1, route.Hops)
	assert.Equal(t, uint64(0), route.Cost)
	assert.Equal(t, topo.Node(a).ILID, route.FID)
}

func TestFIDUnreachable(t *testing.T) {
	topo := state.NewMockTopology(1).Node("A").Node("B").OneWay("A", "B").Build()

	route, err := FIDWithPath(topo, BasicRouter{}, lB, lA)
	require.NoError(t, err)
	assert.False(t, route.Reachable())
	assert.Equal(t, state.Unreachable, route.Hops)
	assert.True(t, route.FID.IsZero())
	assert.Empty(t, route.Path)

	route, err = FIDWithPath(topo, BasicRouter{}, lA, lB)
	require.NoError(t, err)
	assert.Equal(t, 1, route.Hops)
}

func TestFIDUnknownLabel(t *testing.T) {
	topo := chainTopology()
	_, err := FID(topo, BasicRouter{}, lA, lD)
	assert.True(t, errors.Is(err, state.ErrUnknownNode))
}

func TestFIDSkipsRetiredLinks(t *testing.T) {
	topo := triangleTopology()
	a, _ := topo.Lookup(lA)
	c, _ := topo.Lookup(lC)

	route, err := FIDWithPath(topo, BasicRouter{}, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, []state.Label{lA, lC}, route.Path)

	_, ok := topo.Retire(a, c)
	require.True(t, ok)
	route, err = FIDWithPath(topo, BasicRouter{}, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, []state.Label{lA, lB, lC}, route.Path)
}

func TestWeightedRouterPrefersCost(t *testing.T) {
	topo := triangleTopology()
	InitPlanes(topo)

	high, err := RouterFor(topo, 60)
	require.NoError(t, err)
	route, err := FIDWithPath(topo, high, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, []state.Label{lA, lB, lC}, route.Path)
	assert.Equal(t, uint64(80), route.Cost)
	assert.Equal(t, 2, route.Hops)

	// links above the plane's priority are not admissible
	low, err := RouterFor(topo, 0)
	require.NoError(t, err)
	route, err = FIDWithPath(topo, low, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, []state.Label{lA, lC}, route.Path)
	assert.Equal(t, uint64(100), route.Cost)

	route, err = FIDWithPath(topo, low, lA, lB)
	require.NoError(t, err)
	assert.False(t, route.Reachable())
}

func TestMatchPublishersTieGoesToSmallestLabel(t *testing.T) {
	topo := chainTopology()

	res, err := MatchPublishersToSubscribers(topo, BasicRouter{}, []state.Label{lC, lA}, []state.Label{lB})
	require.NoError(t, err)
	assert.Equal(t, "01000001", res.FIDs[lA].String())
	assert.True(t, res.FIDs[lC].IsZero())
	assert.Equal(t, []state.Label{lA}, res.Active())
	assert.Equal(t, []state.Label{lC}, res.Idle())
	assert.Equal(t, []string{string(lA) + "->" + string(lB)}, res.Paths[lA].Sorted())
}

func TestMatchPublishersMergesSubscribers(t *testing.T) {
	topo := chainTopology()

	res, err := MatchPublishersToSubscribers(topo, BasicRouter{}, []state.Label{lB}, []state.Label{lA, lC, lA})
	require.NoError(t, err)
	// B->A | iLID(A) | B->C | iLID(C)
	assert.Equal(t, "10100110", res.FIDs[lB].String())
	assert.Len(t, res.Paths[lB], 2)
}

func TestMatchPublishersSkipsUnreachable(t *testing.T) {
	topo := state.NewMockTopology(1).Node("A").Node("B").Node("C").OneWay("A", "B").Build()

	res, err := MatchPublishersToSubscribers(topo, BasicRouter{}, []state.Label{lB}, []state.Label{lA})
	require.NoError(t, err)
	assert.True(t, res.FIDs[lB].IsZero())
	assert.Empty(t, res.Active())

	_, err = MatchPublishersToSubscribers(topo, BasicRouter{}, []state.Label{lA}, []state.Label{lD})
	assert.True(t, errors.Is(err, state.ErrUnknownNode))
}

func TestMatchUnicast(t *testing.T) {
	topo := chainTopology()

	res, err := MatchUnicast(topo, BasicRouter{}, lA, []state.Label{lC, lB})
	require.NoError(t, err)
	assert.Equal(t, lB, res.Chosen)
	assert.Equal(t, "01000001", res.FID.String())
	assert.Equal(t, []state.Label{lC}, res.Alternates)
	assert.True(t, res.FIDs[lC].IsZero())
	assert.Equal(t, res.FID, res.FIDs[lB])

	oneWay := state.NewMockTopology(1).Node("A").Node("B").Node("C").OneWay("A", "B").Build()
	res, err = MatchUnicast(oneWay, BasicRouter{}, lC, []state.Label{lA, lB})
	require.NoError(t, err)
	assert.Empty(t, res.Chosen)
	assert.True(t, res.FID.IsZero())
	assert.Equal(t, []state.Label{lA, lB}, res.Alternates)
}

func TestMatchImplicitSubscribersKeepsOrder(t *testing.T) {
	topo := state.NewMockTopology(1).
		Node("A", "10000000").Node("B", "01000000").Node("C", "00100000").
		OneWay("A", "B", "00000001").
		Build()

	fids, err := MatchImplicitSubscribers(topo, BasicRouter{}, lA, []state.Label{lC, lB})
	require.NoError(t, err)
	want := []state.Pair[state.Label, state.Bitmask]{
		{V1: lC, V2: mask("00000000")},
		{V1: lB, V2: mask("01000001")},
	}
	if diff := cmp.Diff(want, fids, cmp.Comparer(func(a, b state.Bitmask) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("implicit subscriber FIDs mismatch (-want +got):\n%s", diff)
	}
}
