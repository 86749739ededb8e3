package state

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
)

// LabelLen is the size of a node label and of every identifier fragment.
const LabelLen = 8

// Label is the opaque fixed-length identity of a node.
type Label string

func ParseLabel(b []byte) (Label, error) {
	if len(b) != LabelLen {
		return "", fmt.Errorf("label must be %d bytes, got %d", LabelLen, len(b))
	}
	return Label(b), nil
}

func (l Label) Valid() bool {
	return len(l) == LabelLen
}

// SortLabels returns a sorted, de-duplicated copy.
func SortLabels(in []Label) []Label {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// PathVector renders a node sequence as "a->b->c".
func PathVector(labels []Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, PathSeparator)
}

// SplitPathVector is the inverse of PathVector. An empty vector yields no hops.
func SplitPathVector(p string) []Label {
	if p == "" {
		return nil
	}
	parts := strings.Split(p, PathSeparator)
	out := make([]Label, len(parts))
	for i, s := range parts {
		out[i] = Label(s)
	}
	return out
}

// ItemID is the echoed identifier block of a request: a count and IDLen*LabelLen bytes.
type ItemID struct {
	Count uint8
	ID    string
}

func NewItemID(fragments ...string) ItemID {
	return ItemID{Count: 1, ID: strings.Join(fragments, "")}
}

// IDLen is the number of LabelLen fragments in the identifier.
func (i ItemID) IDLen() int {
	return len(i.ID) / LabelLen
}

// RootScope is the first fragment of the identifier interpreted as an integer.
func (i ItemID) RootScope() uint64 {
	if len(i.ID) < LabelLen {
		return 0
	}
	return binary.BigEndian.Uint64([]byte(i.ID[:LabelLen]))
}

func (i ItemID) String() string {
	return fmt.Sprintf("%d/%x", i.Count, i.ID)
}
