package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jellydator/ttlcache/v3"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
	"github.com/encodeous/icntm/telemetry"
)

// Outbox receives every control message a handler produces. Implementations
// must not block the caller on bus I/O.
type Outbox interface {
	Send(id string, fid state.Bitmask, msg protocol.Message)
}

// DefaultQoSPriority is used for items without cached QoS metadata.
const DefaultQoSPriority uint8 = 0

// Manager answers topology manager requests. It is owned by the main loop.
type Manager struct {
	Topo     *state.Topology
	Cfg      state.TMConfig
	Router   Router
	Mutator  *Mutator
	TE       *TrafficEngine
	Metadata *ttlcache.Cache[state.ItemID, uint8]
	Reporter telemetry.Reporter
	Log      *slog.Logger
	// OnChange, when set, observes every link event that changed the graph.
	OnChange func(Mutation)
}

func NewManager(t *state.Topology, cfg state.TMConfig, rep telemetry.Reporter, log *slog.Logger) *Manager {
	if rep == nil {
		rep = telemetry.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		Topo:     t,
		Cfg:      cfg,
		Router:   BasicRouter{},
		Reporter: rep,
		Log:      log,
		Metadata: ttlcache.New[state.ItemID, uint8](
			ttlcache.WithTTL[state.ItemID, uint8](cfg.MetadataTTL),
			ttlcache.WithDisableTouchOnHit[state.ItemID, uint8](),
		),
	}
	if cfg.TrafficEngineering {
		m.Router = TrafficEngineeredRouter{}
		m.TE = &TrafficEngine{Capacity: cfg.TEBandwidth, Epsilon: cfg.TEEpsilon}
		m.TE.Refresh(t)
	}
	if cfg.QoS {
		InitPlanes(t)
	}
	m.Mutator = NewMutator(t, m.Router, rep, log)
	m.Mutator.CalculateManagerFIDs()
	return m
}

func (m *Manager) send(out Outbox, prefix string, to state.NodeIdx, msg protocol.Message) {
	n := m.Topo.Node(to)
	out.Send(prefix+string(n.Label), n.TMToNode, msg)
}

// HandleEvent dispatches one inbound control message by its scope. Per-request
// faults are returned for logging; the manager state is left consistent.
func (m *Manager) HandleEvent(out Outbox, ev bus.Event) error {
	switch ev.Prefix() {
	case state.LSNScope:
		return m.handleLinkState(out, ev.Publisher(), ev.Payload)
	case state.LSMScope:
		return m.handleLinkStatus(out, ev.Payload)
	case state.UnicastDeliveryID, state.RecoverUnicastDeliveryID:
		return m.handleRequest(out, ev.Payload, true)
	case state.ReqScope, state.ReslRespScope:
		return m.handleRequest(out, ev.Payload, false)
	}
	return fmt.Errorf("no handler for scope %x", ev.Prefix())
}

func (m *Manager) handleRequest(out Outbox, payload []byte, unicast bool) error {
	typ, err := protocol.PeekType(payload)
	if err != nil {
		return err
	}
	switch typ {
	case state.QoSMetadata:
		msg := &protocol.QoSMetadataMsg{}
		if err := msg.DecodeFromBytes(payload); err != nil {
			return err
		}
		return m.handleMetadata(msg)
	case state.MatchPubSubs, state.UpdateFID:
		req := &protocol.PathRequest{}
		if err := req.DecodeFromBytes(payload); err != nil {
			return err
		}
		m.countPathCalculation(req.Item)
		if unicast {
			return m.matchUnicast(out, req)
		}
		return m.matchMulticast(out, req)
	case state.MatchPubISubs:
		req := &protocol.ISubRequest{}
		if err := req.DecodeFromBytes(payload); err != nil {
			return err
		}
		return m.matchImplicit(out, req)
	case state.ScopePublished, state.ScopeUnpublished:
		req := &protocol.ScopeRequest{}
		if err := req.DecodeFromBytes(payload); err != nil {
			return err
		}
		return m.notifyScope(out, req)
	}
	return fmt.Errorf("%w: %s", protocol.ErrUnknownType, protocol.TypeName(typ))
}

func (m *Manager) countPathCalculation(item state.ItemID) {
	ns := telemetry.MapRootScope(item.RootScope())
	if err := m.Reporter.PathCalculation(ns); err != nil {
		m.Log.Warn("failed to report path calculation", "namespace", ns, "error", err)
	}
}

func (m *Manager) handleMetadata(msg *protocol.QoSMetadataMsg) error {
	prio, ok := protocol.FindAttr(msg.Attrs, state.AttrPriority)
	if !ok {
		return errors.New("QoS metadata without a priority attribute")
	}
	m.Metadata.Set(msg.Item, uint8(min(prio, 255)), ttlcache.DefaultTTL)
	m.Log.Debug("cached QoS metadata", "item", msg.Item, "priority", prio)
	return nil
}

// routerForItem picks the QoS plane router for an item when QoS is on.
func (m *Manager) routerForItem(item state.ItemID) (Router, error) {
	if !m.Cfg.QoS {
		return m.Router, nil
	}
	prio := DefaultQoSPriority
	if it := m.Metadata.Get(item); it != nil {
		prio = it.Value()
	}
	return RouterFor(m.Topo, prio)
}

func responseType(reqType uint8) uint8 {
	if reqType == state.UpdateFID {
		return state.UpdateFID
	}
	return state.StartPublish
}

func (m *Manager) matchMulticast(out Outbox, req *protocol.PathRequest) error {
	r, err := m.routerForItem(req.Item)
	if err != nil {
		return err
	}
	res, err := MatchPublishersToSubscribers(m.Topo, r, req.Publishers, req.Subscribers)
	if err != nil {
		return err
	}
	var paths []string
	for _, pub := range state.SortLabels(req.Publishers) {
		idx, _ := m.Topo.Lookup(pub)
		fid := res.FIDs[pub]
		if fid.IsZero() {
			m.send(out, state.RespPrefix, idx, &protocol.PublishResponse{Type: state.StopPublish, Item: req.Item})
			continue
		}
		m.send(out, state.RespPrefix, idx, &protocol.PublishResponse{Type: responseType(req.Type), Item: req.Item, FID: fid})
		paths = append(paths, res.Paths[pub].Sorted()...)
	}
	if m.Cfg.Resilience {
		m.send(out, state.UpdatePathID, m.Topo.RM, &protocol.DeliveryUpdate{
			Item:          req.Item,
			Paths:         paths,
			AltPublishers: res.Idle(),
		})
	}
	return nil
}

func (m *Manager) matchUnicast(out Outbox, req *protocol.PathRequest) error {
	if len(req.Publishers) != 1 {
		return fmt.Errorf("unicast request with %d publishers", len(req.Publishers))
	}
	pub := req.Publishers[0]
	res, err := MatchUnicast(m.Topo, m.Router, pub, req.Subscribers)
	if err != nil {
		return err
	}
	idx, _ := m.Topo.Lookup(pub)
	if res.Chosen == "" {
		m.Log.Debug("no reachable unicast subscriber", "publisher", pub, "item", req.Item)
		m.send(out, state.RespPrefix, idx, &protocol.PublishResponse{Type: state.StopPublish, Item: req.Item})
		return nil
	}
	m.send(out, state.RespPrefix, idx, &protocol.PublishResponse{Type: responseType(req.Type), Item: req.Item, FID: res.FID})
	if m.Cfg.Resilience {
		m.send(out, state.UpdateUnicastPathID, m.Topo.RM, &protocol.UnicastDeliveryUpdate{
			Item:           req.Item,
			Publisher:      pub,
			Path:           res.Path,
			AltSubscribers: res.Alternates,
		})
	}
	return nil
}

func (m *Manager) matchImplicit(out Outbox, req *protocol.ISubRequest) error {
	fids, err := MatchImplicitSubscribers(m.Topo, m.Router, req.Publisher, req.Subscribers)
	if err != nil {
		return err
	}
	resp := &protocol.ISubResponse{Entries: make([]protocol.ISubEntry, len(fids))}
	for i, f := range fids {
		resp.Entries[i] = protocol.ISubEntry{Subscriber: f.V1, FID: f.V2}
	}
	idx, _ := m.Topo.Lookup(req.Publisher)
	m.send(out, state.RespPrefix, idx, resp)
	return nil
}

func (m *Manager) notifyScope(out Outbox, req *protocol.ScopeRequest) error {
	subs, err := m.Topo.LookupAll(req.Subscribers)
	if err != nil {
		return err
	}
	for _, s := range subs {
		m.send(out, state.RespPrefix, s, &protocol.ScopeNotification{Type: req.Type, Item: req.Item})
	}
	return nil
}

func (m *Manager) pushUpdates(out Outbox, updates []FIDUpdate) {
	for _, u := range updates {
		idx, _ := m.Topo.Lookup(u.Node)
		m.send(out, state.RespPrefix, idx, &protocol.FIDUpdate{Type: u.Type, FID: u.FID})
	}
}

// handleLinkState applies a link-state notification. The sender reports the
// link towards the affected node, so the severed edge is affected->sender.
func (m *Manager) handleLinkState(out Outbox, sender state.Label, payload []byte) (err error) {
	lsn := &protocol.LinkStateNotification{}
	if err := lsn.DecodeFromBytes(payload); err != nil {
		return err
	}
	var mut Mutation
	if lsn.Type == state.RemoveLink {
		mut, err = m.Mutator.RemoveLink(lsn.Affected, sender, lsn.Bidirectional())
	} else {
		mut, err = m.Mutator.AddLink(lsn.Affected, sender, lsn.Bidirectional())
	}
	if err != nil {
		return err
	}
	if !mut.Changed {
		m.Log.Debug("link event changed nothing", "sender", sender, "affected", lsn.Affected, "type", protocol.TypeName(lsn.Type))
		return nil
	}
	if m.OnChange != nil {
		m.OnChange(mut)
	}
	m.pushUpdates(out, mut.Updates)
	if !mut.Removed {
		return nil
	}
	switch {
	case m.Cfg.PathManagement:
		m.notifyAffectedLinks(out)
	case m.Cfg.Resilience:
		m.send(out, state.DiscoverFailureID, m.Topo.RM, &protocol.DiscoverFailure{
			NetType:  lsn.NetType,
			Source:   sender,
			Affected: lsn.Affected,
		})
	}
	return nil
}

// notifyAffectedLinks publishes every retired LID on the path management
// scope, per node or once with the union of all TM->node FIDs.
func (m *Manager) notifyAffectedLinks(out Outbox) {
	t := m.Topo
	freed := t.FreedLIDs()
	if m.Cfg.UnicastNotify {
		for _, idx := range t.SortedNodes() {
			n := t.Node(idx)
			if n.TMToNode.IsZero() {
				continue
			}
			for _, lid := range freed {
				out.Send(state.PathMgmtID, n.TMToNode, &protocol.AffectedLink{LID: lid})
			}
		}
		return
	}
	all := t.ZeroFID()
	for i := range t.Nodes {
		all = all.Or(t.Nodes[i].TMToNode)
	}
	for _, lid := range freed {
		out.Send(state.PathMgmtID, all, &protocol.AffectedLink{LID: lid})
	}
}

func (m *Manager) handleLinkStatus(out Outbox, payload []byte) error {
	if !m.Cfg.QoS && !m.Cfg.TrafficEngineering {
		m.Log.Debug("ignoring link status update, neither QoS nor traffic engineering is on")
		return nil
	}
	msg := &protocol.LinkStatusUpdate{FidLen: m.Topo.FidLen}
	if err := msg.DecodeFromBytes(payload); err != nil {
		return err
	}
	for _, st := range msg.Links {
		res, err := ApplyLinkStatus(m.Topo, st)
		if err != nil {
			m.Log.Warn("skipping link status", "lid", st.LID, "error", err)
			continue
		}
		if res.PlaneCreated {
			m.Log.Info("created QoS plane", "priority", m.Topo.Link(res.Link).Priority)
		}
	}
	return nil
}

// RefreshTrafficEngineering recomputes the traffic engineering weights and,
// when they changed, the manager FIDs of every node.
func (m *Manager) RefreshTrafficEngineering(out Outbox) bool {
	if m.TE == nil || !m.TE.Refresh(m.Topo) {
		return false
	}
	updates := m.Mutator.CalculateManagerFIDs()
	m.Log.Info("applied traffic engineering weights", "updates", len(updates))
	m.pushUpdates(out, updates)
	return true
}
