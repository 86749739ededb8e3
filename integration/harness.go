//go:build integration

package integration

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/core"
	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Wait() {
	<-s
}

// ControlPlane runs a TM and an RM process over one in-memory bus.
type ControlPlane struct {
	t    *testing.T
	Bus  *bus.Watermill
	Cfg  state.TopologyCfg
	TM   *state.State
	RM   *state.State
	done []chan error
}

func NewControlPlane(t *testing.T, cfg state.TopologyCfg) *ControlPlane {
	return &ControlPlane{
		t:   t,
		Bus: bus.NewWatermill(slog.Default(), false),
		Cfg: cfg,
	}
}

// start runs one process on its own copy of the topology and waits until it is listening.
func (c *ControlPlane) start(process state.Process, tm state.TMConfig) *state.State {
	cfg := c.Cfg
	topo, err := state.BuildTopology(&cfg)
	require.NoError(c.t, err)

	ready := NewSignal()
	var s *state.State
	done := make(chan error, 1)
	go func() {
		done <- core.Start(core.Options{
			Process:  process,
			Topology: topo,
			TM:       tm,
			LogLevel: slog.LevelDebug,
			Bus:      c.Bus,
			Ready: func(st *state.State) {
				s = st
				ready.Trigger()
			},
		})
		ready.Trigger()
	}()
	ready.Wait()
	require.NotNil(c.t, s, "%s failed to start: %v", process, errOf(done))
	c.done = append(c.done, done)
	return s
}

func errOf(done chan error) error {
	select {
	case err := <-done:
		return err
	default:
		return nil
	}
}

// Start brings up the RM first so that it never misses a delivery report.
func (c *ControlPlane) Start(tm state.TMConfig) {
	c.RM = c.start(state.ProcessRM, tm)
	c.TM = c.start(state.ProcessTM, tm)
}

func (c *ControlPlane) Stop() {
	for _, s := range []*state.State{c.TM, c.RM} {
		if s != nil {
			s.Cancel(errors.New("test finished"))
		}
	}
	for _, done := range c.done {
		require.NoError(c.t, <-done)
	}
	require.NoError(c.t, c.Bus.Close())
}

// Node is a network node reading its control responses off the bus.
type Node struct {
	Label  state.Label
	Events chan bus.Event
}

func (c *ControlPlane) Node(ctx context.Context, l state.Label) *Node {
	n := &Node{Label: l, Events: make(chan bus.Event, 64)}
	err := c.Bus.Subscribe(ctx, state.RespPrefix, func(ctx context.Context, ev bus.Event) error {
		if ev.Publisher() == l {
			n.Events <- ev
		}
		return nil
	})
	require.NoError(c.t, err)
	return n
}

func (c *ControlPlane) Publish(ctx context.Context, scope string, sender state.Label, msg protocol.Message) {
	payload, err := protocol.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.Bus.Publish(ctx, bus.Event{ID: scope + string(sender), Payload: payload}))
}

// Expect waits for the next response of the given type and returns it decoded.
func (n *Node) Expect(t *testing.T, typ uint8) *protocol.PublishResponse {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-n.Events:
			got, err := protocol.PeekType(ev.Payload)
			require.NoError(t, err)
			if got != typ {
				continue
			}
			resp := &protocol.PublishResponse{}
			require.NoError(t, resp.DecodeFromBytes(ev.Payload))
			return resp
		case <-timeout:
			t.Fatalf("node %s: timed out waiting for %s", n.Label, protocol.TypeName(typ))
			return nil
		}
	}
}
