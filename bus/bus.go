// Package bus carries control messages between processes. An identifier is a
// scope prefix followed by one fragment; subscribers listen on a prefix and
// receive every identifier directly below it.
package bus

import (
	"context"
	"encoding/hex"

	"github.com/encodeous/icntm/state"
)

// Event is one published control message.
type Event struct {
	// ID is the full identifier, prefix and last fragment.
	ID string
	// FID is the forwarding identifier the publisher attached.
	FID     []byte
	Payload []byte
}

// Prefix is the identifier without its last fragment.
func (e Event) Prefix() string {
	if len(e.ID) < state.LabelLen {
		return ""
	}
	return e.ID[:len(e.ID)-state.LabelLen]
}

// Publisher is the last fragment, the sender or addressee label by convention.
func (e Event) Publisher() state.Label {
	if len(e.ID) < state.LabelLen {
		return ""
	}
	return state.Label(e.ID[len(e.ID)-state.LabelLen:])
}

type Handler func(ctx context.Context, ev Event) error

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe delivers events under prefix to handler until ctx ends.
	Subscribe(ctx context.Context, prefix string, handler Handler) error
	Close() error
}

func topicOf(prefix string) string {
	return "icn." + hex.EncodeToString([]byte(prefix))
}
