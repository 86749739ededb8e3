package core

import (
	"slices"
	"strings"

	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

// MulticastDelivery is the last reported state of a multicast item.
type MulticastDelivery struct {
	Paths         state.Set[string]
	AltPublishers []state.Label
}

// UnicastDelivery is the last reported state of a unicast item, one path per publisher.
type UnicastDelivery struct {
	Paths          map[state.Label]string
	AltSubscribers []state.Label
}

// ReRoute is a request the RM sends back to the TM for an affected item.
type ReRoute struct {
	Unicast bool
	Request protocol.PathRequest
}

// Tracker holds the delivery paths reported by the TM. It is owned by the main loop.
type Tracker struct {
	Multicast map[state.ItemID]*MulticastDelivery
	Unicast   map[state.ItemID]*UnicastDelivery
}

func NewTracker() *Tracker {
	return &Tracker{
		Multicast: make(map[state.ItemID]*MulticastDelivery),
		Unicast:   make(map[state.ItemID]*UnicastDelivery),
	}
}

// OnDeliveryUpdate replaces everything tracked for the item. An empty path set
// ends the delivery.
func (t *Tracker) OnDeliveryUpdate(u *protocol.DeliveryUpdate) {
	if len(u.Paths) == 0 {
		delete(t.Multicast, u.Item)
		return
	}
	t.Multicast[u.Item] = &MulticastDelivery{
		Paths:         state.NewSet(u.Paths...),
		AltPublishers: slices.Clone(u.AltPublishers),
	}
}

// OnUnicastDeliveryUpdate replaces the publisher's path and the item's
// alternate subscribers. An absent path drops the publisher, and the item goes
// away with its last publisher.
func (t *Tracker) OnUnicastDeliveryUpdate(u *protocol.UnicastDeliveryUpdate) {
	d, ok := t.Unicast[u.Item]
	if !ok {
		d = &UnicastDelivery{Paths: make(map[state.Label]string)}
	}
	if u.Path == "" {
		delete(d.Paths, u.Publisher)
	} else {
		d.Paths[u.Publisher] = u.Path
	}
	if len(d.Paths) == 0 {
		delete(t.Unicast, u.Item)
		return
	}
	d.AltSubscribers = slices.Clone(u.AltSubscribers)
	t.Unicast[u.Item] = d
}

// traverses reports whether the path crosses the edge a->b, or b->a.
func traverses(path string, a, b state.Label) bool {
	hops := state.SplitPathVector(path)
	for i := 1; i < len(hops); i++ {
		if hops[i-1] == a && hops[i] == b || hops[i-1] == b && hops[i] == a {
			return true
		}
	}
	return false
}

func endpoints(path string) (state.Label, state.Label, bool) {
	hops := state.SplitPathVector(path)
	if len(hops) == 0 {
		return "", "", false
	}
	return hops[0], hops[len(hops)-1], true
}

func sortedItems[V any](m map[state.ItemID]V) []state.ItemID {
	keys := mapKeys(m)
	slices.SortFunc(keys, func(a, b state.ItemID) int {
		if a.Count != b.Count {
			return int(a.Count) - int(b.Count)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return keys
}

// OnLinkFailure finds every tracked item whose paths cross the failed link
// between a and b and builds the re-route requests for them, multicast items
// first, in item order.
func (t *Tracker) OnLinkFailure(a, b state.Label) []ReRoute {
	var out []ReRoute
	for _, item := range sortedItems(t.Multicast) {
		d := t.Multicast[item]
		affected := false
		for p := range d.Paths {
			if traverses(p, a, b) {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		pubs := state.NewSet(d.AltPublishers...)
		subs := state.NewSet[state.Label]()
		for p := range d.Paths {
			if pub, sub, ok := endpoints(p); ok {
				pubs.Add(pub)
				subs.Add(sub)
			}
		}
		out = append(out, ReRoute{Request: protocol.PathRequest{
			Type:        state.MatchPubSubs,
			Strategy:    state.ImplicitRendezvous,
			Publishers:  pubs.Sorted(),
			Subscribers: subs.Sorted(),
			Item:        item,
		}})
	}
	for _, item := range sortedItems(t.Unicast) {
		d := t.Unicast[item]
		affected := false
		for _, p := range d.Paths {
			if traverses(p, a, b) {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		subs := state.NewSet(d.AltSubscribers...)
		for _, p := range d.Paths {
			if _, sub, ok := endpoints(p); ok {
				subs.Add(sub)
			}
		}
		for _, pub := range state.SortLabels(mapKeys(d.Paths)) {
			out = append(out, ReRoute{Unicast: true, Request: protocol.PathRequest{
				Type:        state.MatchPubSubs,
				Strategy:    state.ImplicitRendezvous,
				Publishers:  []state.Label{pub},
				Subscribers: subs.Sorted(),
				Item:        item,
			}})
		}
	}
	return out
}
