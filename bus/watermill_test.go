package bus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/encodeous/icntm/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventFragments(t *testing.T) {
	ev := Event{ID: string(state.ReqScope) + "node0001"}
	assert.Equal(t, string(state.ReqScope), ev.Prefix())
	assert.Equal(t, state.Label("node0001"), ev.Publisher())

	assert.Empty(t, Event{ID: "abc"}.Prefix())
}

func TestWatermillDeliversByPrefix(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewWatermill(slog.Default(), false)
	defer b.Close()

	got := make(chan Event, 4)
	require.NoError(t, b.Subscribe(ctx, string(state.ReqScope), func(ctx context.Context, ev Event) error {
		got <- ev
		return nil
	}))
	other := make(chan Event, 4)
	require.NoError(t, b.Subscribe(ctx, string(state.LSNScope), func(ctx context.Context, ev Event) error {
		other <- ev
		return nil
	}))

	sent := Event{
		ID:      string(state.ReqScope) + "node0001",
		FID:     []byte{0x01, 0x02},
		Payload: []byte{100, 1},
	}
	require.NoError(t, b.Publish(ctx, sent))

	select {
	case ev := <-got:
		assert.Equal(t, sent, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected delivery on another prefix: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatermillHandlerErrorDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewWatermill(slog.Default(), false)
	defer b.Close()

	calls := make(chan struct{}, 4)
	require.NoError(t, b.Subscribe(ctx, string(state.ReqScope), func(ctx context.Context, ev Event) error {
		calls <- struct{}{}
		return assert.AnError
	}))

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Publish(ctx, Event{ID: string(state.ReqScope) + "node0001"}))
	}
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("handler not called")
		}
	}
}
