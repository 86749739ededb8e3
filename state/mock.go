package state

import (
	"fmt"
	"slices"
	"strings"
)

// MockLabel left-pads name with zeros to a full label.
func MockLabel(name string) Label {
	if len(name) >= LabelLen {
		return Label(name[:LabelLen])
	}
	return Label(strings.Repeat("0", LabelLen-len(name)) + name)
}

// MockTopology assembles small topology descriptions for tests and examples.
// Masks that are not given explicitly get the next unused single bit.
type MockTopology struct {
	Cfg  TopologyCfg
	used map[string]bool
	next int
}

func NewMockTopology(fidLen int) *MockTopology {
	return &MockTopology{
		Cfg:  TopologyCfg{FidLen: fidLen},
		used: make(map[string]bool),
	}
}

func (m *MockTopology) mask(explicit string) Bitmask {
	if explicit != "" {
		b := MustParseBitmask(explicit)
		m.used[b.String()] = true
		return b
	}
	for {
		b := NewBitmask(m.Cfg.FidLen * 8)
		if m.next >= b.Len() {
			panic(fmt.Sprintf("mock topology ran out of bits at width %d", b.Len()))
		}
		b.Set(m.next)
		m.next++
		if !m.used[b.String()] {
			m.used[b.String()] = true
			return b
		}
	}
}

// Node adds a node. An optional mask string sets its iLID.
func (m *MockTopology) Node(name string, ilid ...string) *MockTopology {
	explicit := ""
	if len(ilid) > 0 {
		explicit = ilid[0]
	}
	m.Cfg.Nodes = append(m.Cfg.Nodes, NodeCfg{Label: MockLabel(name), Name: name, ILID: m.mask(explicit)})
	return m
}

// Link adds a bidirectional link. Optional mask strings set the forward and reverse LIDs.
func (m *MockTopology) Link(a, b string, lids ...string) *MockTopology {
	fwd, rev := "", ""
	if len(lids) > 0 {
		fwd = lids[0]
	}
	if len(lids) > 1 {
		rev = lids[1]
	}
	f := m.mask(fwd)
	r := m.mask(rev)
	m.Cfg.Links = append(m.Cfg.Links, LinkCfg{From: MockLabel(a), To: MockLabel(b), LID: f, ReverseLID: &r, Name: a + "-" + b})
	return m
}

// OneWay adds the single directed edge a->b.
func (m *MockTopology) OneWay(a, b string, lid ...string) *MockTopology {
	explicit := ""
	if len(lid) > 0 {
		explicit = lid[0]
	}
	m.Cfg.Links = append(m.Cfg.Links, LinkCfg{From: MockLabel(a), To: MockLabel(b), LID: m.mask(explicit), Name: a + "->" + b})
	return m
}

// Priority sets the QoS priority of every link added so far between a and b.
func (m *MockTopology) Priority(a, b string, prio uint8) *MockTopology {
	for i := range m.Cfg.Links {
		l := &m.Cfg.Links[i]
		if (l.From == MockLabel(a) && l.To == MockLabel(b)) || (l.From == MockLabel(b) && l.To == MockLabel(a)) {
			l.Priority = prio
		}
	}
	return m
}

func (m *MockTopology) Managers(tm, rv string) *MockTopology {
	m.Cfg.TM = MockLabel(tm)
	m.Cfg.RV = MockLabel(rv)
	return m
}

// Config returns the expanded and validated description. The TM defaults to the first node.
func (m *MockTopology) Config() TopologyCfg {
	cfg := m.Cfg
	cfg.Nodes = slices.Clone(cfg.Nodes)
	cfg.Links = slices.Clone(cfg.Links)
	if cfg.TM == "" {
		cfg.TM = cfg.Nodes[0].Label
	}
	if cfg.RV == "" {
		cfg.RV = cfg.TM
	}
	ExpandTopologyConfig(&cfg)
	if err := TopologyValidator(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func (m *MockTopology) Build() *Topology {
	cfg := m.Config()
	t, err := BuildTopology(&cfg)
	if err != nil {
		panic(err)
	}
	return t
}
