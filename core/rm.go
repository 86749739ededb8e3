package core

import (
	"context"
	"fmt"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

// ResilienceManager is the module that tracks deliveries and asks the TM to
// re-route the ones crossing a failed link.
type ResilienceManager struct {
	*Tracker
	// TMFID reaches the topology manager from this node.
	TMFID state.Bitmask
}

func (rm *ResilienceManager) Init(s *state.State) error {
	t := s.Topology
	rm.Tracker = NewTracker()
	fid, err := FID(t, BasicRouter{}, s.Self, t.Label(t.TM))
	if err != nil {
		return err
	}
	rm.TMFID = fid
	s.Log.Info("init resilience manager", "self", s.Self, "tm_fid", fid)

	tr := Get[*Transport](s)
	scopes := []string{state.ReslScope, state.UpdateUnicastPathID, state.ReslReqScope}
	for _, scope := range scopes {
		err := tr.Subscribe(s.Context, scope, func(ctx context.Context, ev bus.Event) error {
			s.Dispatch(func(s *state.State) error {
				if err := rm.HandleEvent(s, tr, ev); err != nil {
					s.Log.Warn("dropped resilience message", "id", ev.ID, "error", err)
				}
				return nil
			})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// HandleEvent applies one TM notification and sends any resulting re-route requests.
func (rm *ResilienceManager) HandleEvent(s *state.State, out Outbox, ev bus.Event) error {
	switch ev.Prefix() {
	case state.UpdatePathID:
		u := &protocol.DeliveryUpdate{}
		if err := u.DecodeFromBytes(ev.Payload); err != nil {
			return err
		}
		rm.OnDeliveryUpdate(u)
		s.Log.Debug("tracked delivery", "item", u.Item, "paths", len(u.Paths), "alt_publishers", len(u.AltPublishers))
	case state.UpdateUnicastPathID:
		u := &protocol.UnicastDeliveryUpdate{}
		if err := u.DecodeFromBytes(ev.Payload); err != nil {
			return err
		}
		rm.OnUnicastDeliveryUpdate(u)
		s.Log.Debug("tracked unicast delivery", "item", u.Item, "publisher", u.Publisher, "path", u.Path != "")
	case state.DiscoverFailureID:
		df := &protocol.DiscoverFailure{}
		if err := df.DecodeFromBytes(ev.Payload); err != nil {
			return err
		}
		reroutes := rm.OnLinkFailure(df.Affected, df.Source)
		s.Log.Info("link failure", "source", df.Source, "affected", df.Affected, "reroutes", len(reroutes))
		tm := s.Topology.Label(s.Topology.TM)
		for _, r := range reroutes {
			req := r.Request
			if r.Unicast {
				out.Send(state.RecoverUnicastDeliveryID+string(tm), rm.TMFID, &req)
			} else {
				out.Send(state.ReslRespScope+string(tm), rm.TMFID, &req)
			}
		}
	default:
		return fmt.Errorf("no handler for scope %x", ev.Prefix())
	}
	return nil
}

func (rm *ResilienceManager) Cleanup(s *state.State) error {
	return nil
}
