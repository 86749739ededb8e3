package core

import (
	"maps"
	"reflect"
	"slices"

	"github.com/encodeous/icntm/state"
)

func Get[T state.NyModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}

func mapKeys[K comparable, V any](m map[K]V) []K {
	return slices.Collect(maps.Keys(m))
}
