package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCfg() *TopologyCfg {
	return &NewMockTopology(1).
		Node("A").Node("B").Node("C").
		Link("A", "B").Link("B", "C").
		Managers("A", "B").Cfg
}

func TestTopologyValidator_Valid(t *testing.T) {
	cfg := sampleCfg()
	ExpandTopologyConfig(cfg)
	assert.NoError(t, TopologyValidator(cfg))
	assert.Equal(t, cfg.TM, cfg.RM)
	assert.Equal(t, RoleTM, cfg.Nodes[0].Role)
	assert.Equal(t, RoleRV, cfg.Nodes[1].Role)
	assert.Equal(t, RoleForwarder, cfg.Nodes[2].Role)
}

func TestTopologyValidator_Invalid(t *testing.T) {
	cases := map[string]func(cfg *TopologyCfg){
		"short label":    func(cfg *TopologyCfg) { cfg.Nodes[0].Label = "A" },
		"duplicate node": func(cfg *TopologyCfg) { cfg.Nodes[1].Label = cfg.Nodes[0].Label },
		"shared ilid":    func(cfg *TopologyCfg) { cfg.Nodes[1].ILID = cfg.Nodes[0].ILID },
		"lid collides with ilid": func(cfg *TopologyCfg) {
			cfg.Links[0].LID = cfg.Nodes[2].ILID
		},
		"zero lid":       func(cfg *TopologyCfg) { cfg.Links[0].LID = NewBitmask(8) },
		"wrong width":    func(cfg *TopologyCfg) { cfg.Links[0].LID = MustParseBitmask("1") },
		"undefined node": func(cfg *TopologyCfg) { cfg.Links[0].To = MockLabel("Z") },
		"undefined tm":   func(cfg *TopologyCfg) { cfg.TM = MockLabel("Z") },
		"duplicate edge": func(cfg *TopologyCfg) {
			cfg.Links = append(cfg.Links, LinkCfg{From: cfg.Links[0].From, To: cfg.Links[0].To, LID: MustParseBitmask("00000000")})
		},
		"multi-bit ilid": func(cfg *TopologyCfg) {
			cfg.Nodes[1].ILID = cfg.Nodes[1].ILID.Or(MustParseBitmask("00000001"))
		},
		"ilid overlaps ilid": func(cfg *TopologyCfg) {
			cfg.Nodes[1].ILID = cfg.Nodes[0].ILID.Or(cfg.Nodes[1].ILID)
		},
		"lid overlaps ilid": func(cfg *TopologyCfg) {
			cfg.Links[0].LID = cfg.Links[0].LID.Or(cfg.Nodes[2].ILID)
		},
		"self loop": func(cfg *TopologyCfg) { cfg.Links[0].To = cfg.Links[0].From },
		"priority":  func(cfg *TopologyCfg) { cfg.Links[0].Priority = MaxPriority + 1 },
		"fid len":   func(cfg *TopologyCfg) { cfg.FidLen = MaxFidBytes + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := sampleCfg()
			ExpandTopologyConfig(cfg)
			mutate(cfg)
			assert.Error(t, TopologyValidator(cfg))
		})
	}
}

const sampleYaml = `
fid_len: 1
tm: "0000000A"
rv: "0000000B"
mode: kernel
nodes:
  - label: "0000000A"
    ilid: "10000000"
  - label: "0000000B"
    ilid: "01000000"
  - label: "0000000C"
    name: edge
    ilid: "00000100"
links:
  - from: "0000000A"
    to: "0000000B"
    lid: "00000001"
    reverse_lid: "00100000"
  - from: "0000000B"
    to: "0000000C"
    lid: "00000010"
    reverse_lid: "00010000"
    priority: 20
`

func TestTopologyValidator_ILIDSharesLIDBit(t *testing.T) {
	cfg := &TopologyCfg{
		FidLen: 1,
		TM:     MockLabel("A"),
		RV:     MockLabel("A"),
		Nodes: []NodeCfg{
			{Label: MockLabel("A"), ILID: MustParseBitmask("10000000")},
			{Label: MockLabel("B"), ILID: MustParseBitmask("01000001")},
		},
		Links: []LinkCfg{{From: MockLabel("A"), To: MockLabel("B"), LID: MustParseBitmask("00000001")}},
	}
	ExpandTopologyConfig(cfg)
	assert.Error(t, TopologyValidator(cfg))

	cfg.Nodes[1].ILID = MustParseBitmask("01000000")
	assert.NoError(t, TopologyValidator(cfg))
}

func TestParseTopologyConfig(t *testing.T) {
	cfg, err := ParseTopologyConfig("inline", []byte(sampleYaml))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.FidLen)
	assert.Equal(t, "kernel", cfg.Mode)
	assert.Equal(t, MockLabel("A"), cfg.RM)
	require.Len(t, cfg.Nodes, 3)
	assert.Equal(t, "edge", cfg.Nodes[2].Name)
	require.Len(t, cfg.Links, 2)
	require.NotNil(t, cfg.Links[1].ReverseLID)
	assert.Equal(t, "00010000", cfg.Links[1].ReverseLID.String())
	assert.Equal(t, uint8(20), cfg.Links[1].Priority)
}

func TestLoadTopology_Errors(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "missing.yaml"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nodes: [: :"), 0600))
	_, err = LoadTopology(bad)
	require.ErrorAs(t, err, &le)
}

func TestLoadTopology(t *testing.T) {
	p := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sampleYaml), 0600))
	topo, err := LoadTopology(p)
	require.NoError(t, err)
	assert.Len(t, topo.Nodes, 3)
	assert.Len(t, topo.Links, 4)
	assert.Equal(t, MockLabel("A"), topo.Label(topo.TM))
	assert.Equal(t, MockLabel("B"), topo.Label(topo.RV))
	assert.Equal(t, topo.TM, topo.RM)
}
