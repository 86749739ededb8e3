package core

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

var otherItem = state.NewItemID("\x00\x00\x00\x00\x00\x00\x00\x07", "\x00\x00\x00\x00\x00\x00\x00\x02")

func path(labels ...state.Label) string {
	return state.PathVector(labels)
}

func TestTrackerReplacesDeliveries(t *testing.T) {
	tr := NewTracker()
	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{Item: testItem, Paths: []string{path(lA, lB)}, AltPublishers: []state.Label{lD}})
	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{Item: testItem, Paths: []string{path(lC, lB)}})

	require.Contains(t, tr.Multicast, testItem)
	assert.Equal(t, []string{path(lC, lB)}, tr.Multicast[testItem].Paths.Sorted())
	assert.Empty(t, tr.Multicast[testItem].AltPublishers)

	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{Item: testItem})
	assert.NotContains(t, tr.Multicast, testItem)
}

func TestTrackerUnicastPerPublisher(t *testing.T) {
	tr := NewTracker()
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: testItem, Publisher: lA, Path: path(lA, lB), AltSubscribers: []state.Label{lC}})
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: testItem, Publisher: lC, Path: path(lC, lB)})

	d := tr.Unicast[testItem]
	require.NotNil(t, d)
	want := map[state.Label]string{lA: path(lA, lB), lC: path(lC, lB)}
	if diff := cmp.Diff(want, d.Paths); diff != "" {
		t.Fatalf("unicast paths mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, d.AltSubscribers)

	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: testItem, Publisher: lA})
	assert.Len(t, tr.Unicast[testItem].Paths, 1)
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: testItem, Publisher: lC})
	assert.NotContains(t, tr.Unicast, testItem)

	// a finished delivery for an unknown item is a no-op
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: otherItem, Publisher: lC})
	assert.Empty(t, tr.Unicast)
}

func TestTrackerLinkFailureMulticast(t *testing.T) {
	tr := NewTracker()
	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{
		Item:          testItem,
		Paths:         []string{path(lA, lB, lC), path(lA, lB)},
		AltPublishers: []state.Label{lD},
	})
	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{Item: otherItem, Paths: []string{path(lA, lB)}})

	want := []ReRoute{{Request: protocol.PathRequest{
		Type:        state.MatchPubSubs,
		Strategy:    state.ImplicitRendezvous,
		Publishers:  []state.Label{lA, lD},
		Subscribers: []state.Label{lB, lC},
		Item:        testItem,
	}}}
	for _, edge := range [][2]state.Label{{lC, lB}, {lB, lC}} {
		got := tr.OnLinkFailure(edge[0], edge[1])
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("re-routes mismatch for %v (-want +got):\n%s", edge, diff)
		}
	}

	// endpoints that are on the path but not adjacent do not match
	assert.Empty(t, tr.OnLinkFailure(lA, lC))
}

func TestTrackerIgnoresEmptyPaths(t *testing.T) {
	tr := NewTracker()
	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{Item: testItem, Paths: []string{""}})
	require.Contains(t, tr.Multicast, testItem)
	assert.Empty(t, tr.OnLinkFailure(lA, lB))
}

func TestTrackerLinkFailureUnicast(t *testing.T) {
	tr := NewTracker()
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: testItem, Publisher: lA, Path: path(lA, lB, lC), AltSubscribers: []state.Label{lD}})
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: testItem, Publisher: lB, Path: path(lB, lA), AltSubscribers: []state.Label{lD}})

	got := tr.OnLinkFailure(lB, lC)
	require.Len(t, got, 2)
	for i, pub := range []state.Label{lA, lB} {
		assert.True(t, got[i].Unicast)
		assert.Equal(t, []state.Label{pub}, got[i].Request.Publishers)
		assert.Equal(t, []state.Label{lA, lC, lD}, got[i].Request.Subscribers)
	}
}

func TestResilienceManagerHandlesFailure(t *testing.T) {
	topo := chainTopology()
	s := &state.State{Topology: topo, Env: &state.Env{Log: slog.Default()}}
	tmFID, err := FID(topo, BasicRouter{}, lA, lA)
	require.NoError(t, err)
	rm := &ResilienceManager{Tracker: NewTracker(), TMFID: tmFID}
	h := &Harness{}

	require.Equal(t, lA, topo.Label(topo.RM))
	deliver := RequestEvent(state.UpdatePathID, lA, &protocol.DeliveryUpdate{Item: testItem, Paths: []string{path(lC, lB, lA)}})
	require.NoError(t, rm.HandleEvent(s, h, deliver))

	unicast := RequestEvent(state.UpdateUnicastPathID, lA, &protocol.UnicastDeliveryUpdate{Item: otherItem, Publisher: lA, Path: path(lA, lB), AltSubscribers: []state.Label{lC}})
	require.NoError(t, rm.HandleEvent(s, h, unicast))
	assert.Empty(t, h.GetActions())

	failure := RequestEvent(state.DiscoverFailureID, lA, &protocol.DiscoverFailure{NetType: state.NetTypeBidirectional, Source: lB, Affected: lA})
	require.NoError(t, rm.HandleEvent(s, h, failure))
	a := h.GetActions()
	assert.Len(t, a, 2)
	a.AssertContains(t, "MATCH_PUB_SUBS", "resl_resp", "A", "10000000", "C", "A")
	a.AssertContains(t, "MATCH_PUB_SUBS", "recover_unicast", "A", "10000000", "A", "B,C")

	failure = RequestEvent(state.DiscoverFailureID, lA, &protocol.DiscoverFailure{Source: lC, Affected: lD})
	require.NoError(t, rm.HandleEvent(s, h, failure))
	assert.Empty(t, h.GetActions())

	bad := RequestEvent(state.ReqScope, lA, &protocol.DiscoverFailure{Source: lC, Affected: lB})
	assert.Error(t, rm.HandleEvent(s, h, bad))
}
