package core

import (
	"context"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/perf"
	"github.com/encodeous/icntm/state"
	"github.com/encodeous/icntm/telemetry"
)

// scopes the topology manager listens on
var tmScopes = []string{
	state.ReqScope,
	state.UnicastDeliveryID,
	state.ReslRespScope,
	state.RecoverUnicastDeliveryID,
	state.LSNScope,
	state.LSMScope,
}

// TopologyManager is the module that serves path requests and link events.
type TopologyManager struct {
	*Manager
	// Registry receives the telemetry metrics, none are exported when nil.
	Registry prometheus.Registerer
	// Changes carries a Mutation for every link event that changed the graph.
	Changes broadcast.Broadcaster
}

func (tm *TopologyManager) Init(s *state.State) error {
	s.Log.Info("init topology manager",
		"nodes", len(s.Topology.Nodes), "links", len(s.Topology.Links), "fid_len", s.Topology.FidLen,
		"qos", s.TMCfg.QoS, "te", s.TMCfg.TrafficEngineering,
		"resilience", s.TMCfg.Resilience, "path_management", s.TMCfg.PathManagement)

	var rep telemetry.Reporter = telemetry.Nop{}
	if tm.Registry != nil {
		rep = telemetry.NewPrometheus(tm.Registry)
	}
	if err := telemetry.ReportTopology(rep, s.Topology); err != nil {
		s.Log.Warn("failed to report topology", "error", err)
	}

	tm.Manager = NewManager(s.Topology, s.TMCfg, rep, s.Log)
	tm.Changes = broadcast.NewBroadcaster(1024)
	tm.OnChange = func(m Mutation) {
		tm.Changes.Submit(m)
	}
	go tm.Metadata.Start()

	tr := Get[*Transport](s)
	for _, scope := range tmScopes {
		err := tr.Subscribe(s.Context, scope, func(ctx context.Context, ev bus.Event) error {
			s.Dispatch(func(s *state.State) error {
				tm.handle(s, tr, ev)
				return nil
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	if tm.TE != nil {
		s.RepeatTask(func(s *state.State) error {
			tm.RefreshTrafficEngineering(tr)
			return nil
		}, s.TMCfg.TEDelay)
	}
	return nil
}

func (tm *TopologyManager) handle(s *state.State, out Outbox, ev bus.Event) {
	start := time.Now()
	if err := tm.HandleEvent(out, ev); err != nil {
		s.Log.Warn("dropped request", "id", ev.ID, "publisher", ev.Publisher(), "error", err)
	}
	perf.PathCalcLatency.Add(float64(time.Since(start).Microseconds()))
}

func (tm *TopologyManager) Cleanup(s *state.State) error {
	if tm.Manager != nil {
		tm.Metadata.Stop()
	}
	if tm.Changes != nil {
		return tm.Changes.Close()
	}
	return nil
}
