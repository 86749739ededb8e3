package state

import "time"

type Role string

const (
	RoleForwarder Role = "forwarder"
	RoleRV        Role = "rv"
	RoleTM        Role = "tm"
)

type NodeCfg struct {
	Label Label
	Name  string `yaml:",omitempty"`
	ILID  Bitmask
	Role  Role `yaml:",omitempty"`
}

// LinkCfg declares the directed edge From->To. ReverseLID, when set, declares To->From as well.
type LinkCfg struct {
	From       Label
	To         Label
	LID        Bitmask
	ReverseLID *Bitmask `yaml:"reverse_lid,omitempty"`
	Name       string   `yaml:",omitempty"`
	Priority   uint8    `yaml:",omitempty"`
}

// TopologyCfg is the on-disk topology description.
type TopologyCfg struct {
	FidLen int `yaml:"fid_len"`
	TM     Label
	RV     Label
	RM     Label  `yaml:",omitempty"`
	Mode   string `yaml:",omitempty"`
	Nodes  []NodeCfg
	Links  []LinkCfg
}

// TMConfig carries the process options of the topology manager.
type TMConfig struct {
	TrafficEngineering bool
	TEDelay            time.Duration
	TEEpsilon          float64
	TEBandwidth        float64
	QoS                bool
	Resilience         bool
	PathManagement     bool
	UnicastNotify      bool
	MetadataTTL        time.Duration
	DebugAddr          string
	LogPath            string
}

type RMConfig struct {
	DebugAddr string
	LogPath   string
}

func DefaultTMConfig() TMConfig {
	return TMConfig{
		TEDelay:       DefaultTEDelay,
		TEEpsilon:     DefaultTEEpsilon,
		TEBandwidth:   DefaultTEBandwidth,
		UnicastNotify: true,
		MetadataTTL:   DefaultMetadataTTL,
	}
}

// ExpandTopologyConfig fills in defaults before validation.
func ExpandTopologyConfig(cfg *TopologyCfg) {
	if cfg.FidLen == 0 {
		cfg.FidLen = DefaultFidLen
	}
	if cfg.RM == "" {
		cfg.RM = cfg.TM
	}
	if cfg.Mode == "" {
		cfg.Mode = "user"
	}
	for i := range cfg.Nodes {
		if cfg.Nodes[i].Role != "" {
			continue
		}
		switch cfg.Nodes[i].Label {
		case cfg.TM:
			cfg.Nodes[i].Role = RoleTM
		case cfg.RV:
			cfg.Nodes[i].Role = RoleRV
		default:
			cfg.Nodes[i].Role = RoleForwarder
		}
	}
}
