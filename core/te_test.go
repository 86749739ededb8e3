package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/icntm/state"
)

func TestTEWeight(t *testing.T) {
	assert.Equal(t, uint32(1), TEWeight(0, 1e9))
	assert.Equal(t, uint32(1), TEWeight(5e8, 0))
	assert.Equal(t, uint32(51), TEWeight(5e8, 1e9))
	assert.Equal(t, uint32(101), TEWeight(1e9, 1e9))
}

func TestTrafficEngineRefreshThreshold(t *testing.T) {
	topo := triangleTopology()
	te := &TrafficEngine{Capacity: 1000, Epsilon: 0.1}

	assert.True(t, te.Refresh(topo))
	require.Len(t, topo.TEWeights, len(topo.Links))
	assert.False(t, te.Refresh(topo))

	topo.Links[0].Utilisation = 50
	assert.False(t, te.Refresh(topo), "a 5% move stays under epsilon")

	topo.Links[0].Utilisation = 200
	assert.True(t, te.Refresh(topo))
	assert.Equal(t, uint32(21), topo.TEWeights[0])
}

func TestTrafficEngineeredRouterAvoidsLoad(t *testing.T) {
	topo := triangleTopology()
	a, _ := topo.Lookup(lA)
	c, _ := topo.Lookup(lC)
	ac, _ := topo.Edge(a, c)

	// without weights it behaves like the basic router
	route, err := FIDWithPath(topo, TrafficEngineeredRouter{}, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, []state.Label{lA, lC}, route.Path)

	te := &TrafficEngine{Capacity: 1000, Epsilon: 0.1}
	topo.Link(ac).Utilisation = 900
	require.True(t, te.Refresh(topo))

	route, err = FIDWithPath(topo, TrafficEngineeredRouter{}, lA, lC)
	require.NoError(t, err)
	assert.Equal(t, []state.Label{lA, lB, lC}, route.Path)
	assert.Equal(t, uint64(2), route.Cost)
}
