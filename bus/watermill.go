package bus

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	metaKeyID  = "icn_id"
	metaKeyFID = "fid"
)

// Watermill implements Bus over watermill's in-memory GoChannel.
type Watermill struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
	log    *slog.Logger
}

func NewWatermill(log *slog.Logger, verbose bool) *Watermill {
	logger := watermill.NewStdLogger(verbose, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		logger,
	)
	return &Watermill{
		pub:    goChannel,
		sub:    goChannel,
		logger: logger,
		log:    log,
	}
}

func toMessage(ev Event) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), ev.Payload)
	msg.Metadata.Set(metaKeyID, hex.EncodeToString([]byte(ev.ID)))
	msg.Metadata.Set(metaKeyFID, hex.EncodeToString(ev.FID))
	return msg
}

func fromMessage(msg *message.Message) (Event, error) {
	id, err := hex.DecodeString(msg.Metadata.Get(metaKeyID))
	if err != nil {
		return Event{}, fmt.Errorf("bad identifier metadata: %w", err)
	}
	fid, err := hex.DecodeString(msg.Metadata.Get(metaKeyFID))
	if err != nil {
		return Event{}, fmt.Errorf("bad fid metadata: %w", err)
	}
	return Event{ID: string(id), FID: fid, Payload: msg.Payload}, nil
}

func (w *Watermill) Publish(ctx context.Context, ev Event) error {
	msg := toMessage(ev)
	msg.SetContext(ctx)
	return w.pub.Publish(topicOf(Event{ID: ev.ID}.Prefix()), msg)
}

func (w *Watermill) Subscribe(ctx context.Context, prefix string, handler Handler) error {
	topic := topicOf(prefix)
	messages, err := w.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ev, err := fromMessage(msg)
			if err == nil {
				err = handler(ctx, ev)
			}
			if err != nil {
				w.log.Warn("dropped control message", "topic", topic, "msg_id", msg.UUID, "error", err)
			}
			// control messages are never redelivered, so failures are acked too
			msg.Ack()
		}
		w.log.Debug("subscription ended", "topic", topic)
	}()
	return nil
}

func (w *Watermill) Close() error {
	return w.sub.Close()
}
