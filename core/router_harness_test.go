package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/encodeous/icntm/bus"
	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// Harness is an Outbox that records every control message as a readable event.
// Mock labels are shown without their zero padding.
type Harness struct {
	actions []HarnessEvent
	// Sent keeps the raw messages in send order.
	Sent []bus.Event
}

var scopeNames = map[string]string{
	state.RespPrefix:               "resp",
	state.UpdatePathID:             "update_path",
	state.UpdateUnicastPathID:      "update_unicast_path",
	state.DiscoverFailureID:        "discover_failure",
	state.PathMgmtScope:            "path_mgmt",
	state.ReslRespScope:            "resl_resp",
	state.RecoverUnicastDeliveryID: "recover_unicast",
}

func short(l state.Label) string {
	s := strings.TrimLeft(string(l), "0")
	if s == "" {
		return "0"
	}
	return s
}

func shortLabels(ls []state.Label) string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = short(l)
	}
	return strings.Join(out, ",")
}

func shortPath(p string) string {
	return strings.ReplaceAll(shortLabels(state.SplitPathVector(p)), ",", state.PathSeparator)
}

func describe(msg protocol.Message) (string, []any) {
	switch m := msg.(type) {
	case *protocol.PublishResponse:
		return protocol.TypeName(m.Type), []any{m.FID.String()}
	case *protocol.ScopeNotification:
		return protocol.TypeName(m.Type), []any{m.Item.String()}
	case *protocol.FIDUpdate:
		return protocol.TypeName(m.Type), []any{m.FID.String()}
	case *protocol.ISubResponse:
		entries := make([]string, len(m.Entries))
		for i, e := range m.Entries {
			entries[i] = short(e.Subscriber) + "=" + e.FID.String()
		}
		return protocol.TypeName(m.MsgType()), []any{strings.Join(entries, ",")}
	case *protocol.DeliveryUpdate:
		paths := make([]string, len(m.Paths))
		for i, p := range m.Paths {
			paths[i] = shortPath(p)
		}
		return "UPDATE_DELIVERY", []any{strings.Join(paths, ","), shortLabels(m.AltPublishers)}
	case *protocol.UnicastDeliveryUpdate:
		return "UPDATE_DELIVERY_UNICAST", []any{short(m.Publisher), shortPath(m.Path), shortLabels(m.AltSubscribers)}
	case *protocol.DiscoverFailure:
		return protocol.TypeName(m.MsgType()), []any{short(m.Source), short(m.Affected), m.Bidirectional()}
	case *protocol.AffectedLink:
		return "AFFECTED_LID", []any{m.LID.String()}
	case *protocol.PathRequest:
		return protocol.TypeName(m.Type), []any{shortLabels(m.Publishers), shortLabels(m.Subscribers)}
	}
	return fmt.Sprintf("%T", msg), nil
}

func (h *Harness) Send(id string, fid state.Bitmask, msg protocol.Message) {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		panic(err)
	}
	ev := bus.Event{ID: id, FID: fid.Bytes(), Payload: payload}
	h.Sent = append(h.Sent, ev)

	to := short(ev.Publisher())
	if ev.Prefix() == state.PathMgmtScope {
		to = "*"
	}
	name, details := describe(msg)
	args := []any{scopeNames[ev.Prefix()], to, fid.String()}
	h.actions = append(h.actions, MakeEvent(name, append(args, details...)...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (h *Harness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	h.Sent = nil
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

// Count returns how many recorded events carry msg.
func (e HarnessEvents) Count(msg string) int {
	n := 0
	for _, event := range e {
		if event.Message == msg {
			n++
		}
	}
	return n
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in\n", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in\n", e)
	}
}

// RequestEvent builds the bus event a node would publish for msg under scope.
func RequestEvent(scope string, sender state.Label, msg protocol.Message) bus.Event {
	payload, err := protocol.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return bus.Event{ID: scope + string(sender), Payload: payload}
}
