package core

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/icntm/protocol"
	"github.com/encodeous/icntm/state"
)

func TestDumpTopology(t *testing.T) {
	topo := chainTopology()
	m := newTestMutator(topo)

	out := DumpTopology(topo)
	assert.Contains(t, out, "fid_len=1")
	assert.Contains(t, out, "TM->node:")
	assert.Contains(t, out, " (none)")

	_, err := m.RemoveLink(lB, lC, false)
	assert.NoError(t, err)
	out = DumpTopology(topo)
	assert.Contains(t, out, string(lB)+"->"+string(lC)+" 00000010 down")
	assert.Contains(t, out, " - "+string(lB)+"->"+string(lC)+" 00000010\n")
}

func TestDumpTracker(t *testing.T) {
	tr := NewTracker()
	assert.Contains(t, DumpTracker(tr), "(none)")

	tr.OnDeliveryUpdate(&protocol.DeliveryUpdate{Item: testItem, Paths: []string{path(lA, lB)}})
	tr.OnUnicastDeliveryUpdate(&protocol.UnicastDeliveryUpdate{Item: otherItem, Publisher: lC, Path: path(lC, lB)})
	out := DumpTracker(tr)
	assert.Contains(t, out, testItem.String())
	assert.Contains(t, out, path(lA, lB))
	assert.Contains(t, out, string(lC)+": "+path(lC, lB))
}

func TestRecordOfMutation(t *testing.T) {
	rec := recordOf(Mutation{Removed: true, LIDs: []state.Bitmask{mask("00000010")}, Isolated: []state.Label{lC}})
	assert.True(t, rec.Removed)
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, []string{"00000010"}, rec.LIDs)
	assert.Equal(t, []string{"3030303030303043"}, rec.Isolated)
}

func TestChangeStreamDoesNotStallSubmit(t *testing.T) {
	b := broadcast.NewBroadcaster(0)
	defer b.Close()
	ch := make(chan any)
	stop := make(chan struct{})
	changes := dropSlow(ch, stop, 4, slog.Default())
	b.Register(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			b.Submit(Mutation{Changed: true})
		}
	}()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond, "submit blocked on an unread stream")

	b.Unregister(ch)
	close(stop)
	assert.Len(t, changes, 4)
}
