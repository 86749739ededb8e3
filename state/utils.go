package state

import (
	"maps"
	"slices"
)

type Pair[Ty1, Ty2 any] struct {
	V1 Ty1
	V2 Ty2
}

// Set is an unordered set with sorted enumeration.
type Set[T ~string] map[T]struct{}

func NewSet[T ~string](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s Set[T]) Add(items ...T) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

func (s Set[T]) Union(o Set[T]) Set[T] {
	out := maps.Clone(s)
	if out == nil {
		out = make(Set[T])
	}
	maps.Copy(out, o)
	return out
}

func (s Set[T]) Sorted() []T {
	return slices.Sorted(maps.Keys(s))
}
