package state

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadError is fatal to startup. No partial topology is ever returned with it.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load topology %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func ReadTopologyConfig(path string) (*TopologyCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{path, err}
	}
	return ParseTopologyConfig(path, file)
}

func ParseTopologyConfig(source string, data []byte) (*TopologyCfg, error) {
	var cfg TopologyCfg
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{source, err}
	}
	ExpandTopologyConfig(&cfg)
	if err := TopologyValidator(&cfg); err != nil {
		return nil, &LoadError{source, err}
	}
	return &cfg, nil
}

// LoadTopology reads, validates and builds the arena described at path.
func LoadTopology(path string) (*Topology, error) {
	cfg, err := ReadTopologyConfig(path)
	if err != nil {
		return nil, err
	}
	t, err := BuildTopology(cfg)
	if err != nil {
		return nil, &LoadError{path, err}
	}
	return t, nil
}

// BuildTopology expects a validated config.
func BuildTopology(cfg *TopologyCfg) (*Topology, error) {
	t := NewTopology(cfg.FidLen)
	t.Mode = cfg.Mode
	for _, n := range cfg.Nodes {
		if _, err := t.AddNode(Node{Label: n.Label, Name: n.Name, ILID: n.ILID, Role: n.Role}); err != nil {
			return nil, err
		}
	}
	var err error
	if t.TM, err = t.Lookup(cfg.TM); err != nil {
		return nil, err
	}
	if t.RV, err = t.Lookup(cfg.RV); err != nil {
		return nil, err
	}
	if t.RM, err = t.Lookup(cfg.RM); err != nil {
		return nil, err
	}
	for _, l := range cfg.Links {
		from, err := t.Lookup(l.From)
		if err != nil {
			return nil, err
		}
		to, err := t.Lookup(l.To)
		if err != nil {
			return nil, err
		}
		if _, err = t.AddLink(Link{LID: l.LID, From: from, To: to, Name: l.Name, Priority: l.Priority}); err != nil {
			return nil, err
		}
		if l.ReverseLID != nil {
			if _, err = t.AddLink(Link{LID: *l.ReverseLID, From: to, To: from, Name: l.Name, Priority: l.Priority}); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}
