// Package telemetry reports topology inventory, link state and path
// calculation counts to the monitoring collaborator. Reporting never blocks
// or fails a topology operation; callers log returned errors and carry on.
package telemetry

import (
	"math"

	"github.com/encodeous/icntm/state"
)

type Reporter interface {
	AddNode(label state.Label, name string, role state.Role) error
	AddLink(lid state.Bitmask, from, to state.Label, name string) error
	LinkState(lid state.Bitmask, from, to state.Label, up bool) error
	PathCalculation(ns Namespace) error
}

// Namespace is the root namespace of an information item.
type Namespace uint64

const (
	NamespaceIP Namespace = iota
	NamespaceHTTP
	NamespaceCoAP
	NamespaceMonitoring
	NamespaceManagement
	NamespaceSurrogacy
	NamespaceLinkState
	NamespacePathManagement
	NamespaceExperimentation
	NamespaceIGMPCtrl
	NamespaceIGMPData
	NamespaceAppRV
	NamespaceRVTM
	NamespaceTMApp
	NamespaceUnknown
)

var namespaceNames = map[Namespace]string{
	NamespaceIP:              "ip",
	NamespaceHTTP:            "http",
	NamespaceCoAP:            "coap",
	NamespaceMonitoring:      "monitoring",
	NamespaceManagement:      "management",
	NamespaceSurrogacy:       "surrogacy",
	NamespaceLinkState:       "link_state",
	NamespacePathManagement:  "path_management",
	NamespaceExperimentation: "experimentation",
	NamespaceIGMPCtrl:        "igmp_ctrl",
	NamespaceIGMPData:        "igmp_data",
	NamespaceAppRV:           "app_rv",
	NamespaceRVTM:            "rv_tm",
	NamespaceTMApp:           "tm_app",
	NamespaceUnknown:         "unknown",
}

func (n Namespace) String() string {
	if s, ok := namespaceNames[n]; ok {
		return s
	}
	return "unknown"
}

// MapRootScope maps the first identifier fragment to its namespace. Small
// scopes map to themselves, reserved all-ones scopes to their named namespaces.
func MapRootScope(s uint64) Namespace {
	if s < 65536 {
		return Namespace(s)
	}
	switch s {
	case math.MaxUint64:
		return NamespaceAppRV
	case math.MaxUint64 - 1:
		return NamespaceRVTM
	case math.MaxUint64 - 2:
		return NamespaceTMApp
	case math.MaxUint64 - 4:
		return NamespaceLinkState
	case math.MaxUint64 - 5:
		return NamespacePathManagement
	}
	return NamespaceUnknown
}

// Nop discards every report.
type Nop struct{}

func (Nop) AddNode(state.Label, string, state.Role) error                 { return nil }
func (Nop) AddLink(state.Bitmask, state.Label, state.Label, string) error { return nil }
func (Nop) LinkState(state.Bitmask, state.Label, state.Label, bool) error { return nil }
func (Nop) PathCalculation(Namespace) error                               { return nil }

// ReportTopology sends the full node and link inventory.
func ReportTopology(r Reporter, t *state.Topology) error {
	for _, idx := range t.SortedNodes() {
		n := t.Node(idx)
		if err := r.AddNode(n.Label, n.Name, n.Role); err != nil {
			return err
		}
	}
	for i := range t.Links {
		l := t.Link(state.LinkIdx(i))
		if err := r.AddLink(l.LID, t.Label(l.From), t.Label(l.To), l.Name); err != nil {
			return err
		}
	}
	return nil
}
