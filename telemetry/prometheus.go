package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/encodeous/icntm/state"
)

// Prometheus exports reports as metrics on a registry.
type Prometheus struct {
	nodes            *prometheus.GaugeVec
	links            *prometheus.GaugeVec
	linkUp           *prometheus.GaugeVec
	linkTransitions  *prometheus.CounterVec
	pathCalculations *prometheus.CounterVec
}

func NewPrometheus(registry prometheus.Registerer) *Prometheus {
	auto := promauto.With(registry)
	return &Prometheus{
		nodes: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "icn_topology_node",
			Help: "Nodes of the loaded topology, always 1.",
		}, []string{"label", "name", "role"}),
		links: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "icn_topology_link",
			Help: "Directed links of the loaded topology, always 1.",
		}, []string{"lid", "from", "to", "name"}),
		linkUp: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "icn_link_up",
			Help: "Whether a directed link is live (1) or severed (0).",
		}, []string{"lid", "from", "to"}),
		linkTransitions: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "icn_link_state_changes_total",
			Help: "Total number of link state transitions.",
		}, []string{"state"}),
		pathCalculations: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "icn_path_calculations_total",
			Help: "Total number of path calculation requests per root namespace.",
		}, []string{"namespace"}),
	}
}

func (p *Prometheus) AddNode(label state.Label, name string, role state.Role) error {
	g, err := p.nodes.GetMetricWithLabelValues(string(label), name, string(role))
	if err != nil {
		return err
	}
	g.Set(1)
	return nil
}

func (p *Prometheus) AddLink(lid state.Bitmask, from, to state.Label, name string) error {
	g, err := p.links.GetMetricWithLabelValues(lid.String(), string(from), string(to), name)
	if err != nil {
		return err
	}
	g.Set(1)
	up, err := p.linkUp.GetMetricWithLabelValues(lid.String(), string(from), string(to))
	if err != nil {
		return err
	}
	up.Set(1)
	return nil
}

func (p *Prometheus) LinkState(lid state.Bitmask, from, to state.Label, up bool) error {
	g, err := p.linkUp.GetMetricWithLabelValues(lid.String(), string(from), string(to))
	if err != nil {
		return err
	}
	st := "down"
	if up {
		g.Set(1)
		st = "up"
	} else {
		g.Set(0)
	}
	c, err := p.linkTransitions.GetMetricWithLabelValues(st)
	if err != nil {
		return err
	}
	c.Inc()
	return nil
}

func (p *Prometheus) PathCalculation(ns Namespace) error {
	c, err := p.pathCalculations.GetMetricWithLabelValues(ns.String())
	if err != nil {
		return err
	}
	c.Inc()
	return nil
}
