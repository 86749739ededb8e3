package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/perf"
	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

// Transport owns the bus connection of a process and queues outbound control
// messages. Send never blocks, so the main loop can emit while bus
// subscribers are waiting on it.
type Transport struct {
	bus.Bus
	owned bool
	log   *slog.Logger

	mu      sync.Mutex
	pending []bus.Event
	wake    chan struct{}
}

func (t *Transport) Init(s *state.State) error {
	if t.Bus == nil {
		t.Bus = bus.NewWatermill(s.Log, false)
		t.owned = true
	}
	t.log = s.Log
	t.wake = make(chan struct{}, 1)
	return nil
}

func (t *Transport) Cleanup(s *state.State) error {
	if t.owned {
		return t.Bus.Close()
	}
	return nil
}

func (t *Transport) Send(id string, fid state.Bitmask, msg protocol.Message) {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		t.log.Warn("failed to encode control message", "type", protocol.TypeName(msg.MsgType()), "error", err)
		return
	}
	t.mu.Lock()
	t.pending = append(t.pending, bus.Event{ID: id, FID: fid.Bytes(), Payload: payload})
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Transport) drain() []bus.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

// Run publishes queued messages until ctx ends.
func (t *Transport) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
		}
		for _, ev := range t.drain() {
			if err := t.Publish(ctx, ev); err != nil {
				t.log.Warn("failed to publish control message", "id", ev.ID, "error", err)
				continue
			}
			perf.EventsPerSecond.Add(1)
		}
	}
}
