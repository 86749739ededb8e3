package state

import (
	"fmt"
	"slices"
)

func LabelValidator(l Label) error {
	if !l.Valid() {
		return fmt.Errorf("label %q must be exactly %d bytes", l, LabelLen)
	}
	return nil
}

func maskValidator(what string, m Bitmask, fidLen int) error {
	if m.Len() != fidLen*8 {
		return fmt.Errorf("%s %s has %d bits, expected %d", what, m, m.Len(), fidLen*8)
	}
	if m.IsZero() {
		return fmt.Errorf("%s must not be all-zero", what)
	}
	return nil
}

func TopologyValidator(cfg *TopologyCfg) error {
	if cfg.FidLen <= 0 || cfg.FidLen > MaxFidBytes {
		return fmt.Errorf("fid_len %d out of range 1..%d", cfg.FidLen, MaxFidBytes)
	}
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("topology has no nodes")
	}
	masks := make(map[Bitmask]string)
	// an iLID bit belongs to exactly one identifier
	ilidBits := NewBitmask(cfg.FidLen * 8)
	claim := func(owner string, m Bitmask) error {
		if prev, ok := masks[m]; ok {
			return fmt.Errorf("%s reuses identifier %s of %s", owner, m, prev)
		}
		masks[m] = owner
		return nil
	}
	labels := make([]Label, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if err := LabelValidator(node.Label); err != nil {
			return err
		}
		if slices.Contains(labels, node.Label) {
			return fmt.Errorf("duplicate node %s", node.Label)
		}
		labels = append(labels, node.Label)
		owner := fmt.Sprintf("iLID of %s", node.Label)
		if err := maskValidator(owner, node.ILID, cfg.FidLen); err != nil {
			return err
		}
		if node.ILID.OnesCount() != 1 {
			return fmt.Errorf("%s %s must have exactly one bit set", owner, node.ILID)
		}
		if !node.ILID.And(ilidBits).IsZero() {
			return fmt.Errorf("%s %s overlaps another iLID", owner, node.ILID)
		}
		if err := claim(owner, node.ILID); err != nil {
			return err
		}
		ilidBits = ilidBits.Or(node.ILID)
	}
	for _, mgr := range []Label{cfg.TM, cfg.RV, cfg.RM} {
		if !slices.Contains(labels, mgr) {
			return fmt.Errorf("node %s not defined", mgr)
		}
	}
	edges := make([]Pair[Label, Label], 0)
	addEdge := func(from, to Label, lid Bitmask) error {
		e := Pair[Label, Label]{from, to}
		if from == to {
			return fmt.Errorf("self loop on %s", from)
		}
		if slices.Contains(edges, e) {
			return fmt.Errorf("duplicate edge found: %s, %s", from, to)
		}
		owner := fmt.Sprintf("LID of %s->%s", from, to)
		if err := maskValidator(owner, lid, cfg.FidLen); err != nil {
			return err
		}
		if !lid.And(ilidBits).IsZero() {
			return fmt.Errorf("%s %s overlaps an iLID", owner, lid)
		}
		if err := claim(owner, lid); err != nil {
			return err
		}
		edges = append(edges, e)
		return nil
	}
	for _, link := range cfg.Links {
		for _, l := range []Label{link.From, link.To} {
			if !slices.Contains(labels, l) {
				return fmt.Errorf("node %s not defined", l)
			}
		}
		if link.Priority > MaxPriority {
			return fmt.Errorf("link %s->%s priority %d exceeds %d", link.From, link.To, link.Priority, MaxPriority)
		}
		if err := addEdge(link.From, link.To, link.LID); err != nil {
			return err
		}
		if link.ReverseLID != nil {
			if err := addEdge(link.To, link.From, *link.ReverseLID); err != nil {
				return err
			}
		}
	}
	return nil
}
