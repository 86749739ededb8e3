package core

import (
	"math"

	"github.com/encodeous/icntm/state"
)

// TEWeight is the traffic engineering weight of a link carrying util bit/s
// out of capacity bit/s.
func TEWeight(util, capacity float64) uint32 {
	if capacity <= 0 || util <= 0 {
		return 1
	}
	return 1 + uint32(math.Round(100*util/capacity))
}

// TrafficEngine refreshes the topology's traffic engineering weights from the
// last reported link utilisation.
type TrafficEngine struct {
	Capacity float64
	// Epsilon is the utilisation ratio change that triggers a refresh.
	Epsilon float64
	applied []float64
}

// Refresh swaps in new weights when the topology has none yet or when any
// link's utilisation ratio moved by more than Epsilon since the last swap.
func (e *TrafficEngine) Refresh(t *state.Topology) bool {
	ratios := make([]float64, len(t.Links))
	for i := range t.Links {
		if e.Capacity > 0 {
			ratios[i] = t.Links[i].Utilisation / e.Capacity
		}
	}
	moved := t.TEWeights == nil || len(e.applied) != len(ratios)
	for i := 0; !moved && i < len(ratios); i++ {
		if math.Abs(ratios[i]-e.applied[i]) > e.Epsilon {
			moved = true
		}
	}
	if !moved {
		return false
	}
	weights := make([]uint32, len(t.Links))
	for i := range t.Links {
		weights[i] = TEWeight(t.Links[i].Utilisation, e.Capacity)
	}
	t.TEWeights = weights
	e.applied = ratios
	return true
}
