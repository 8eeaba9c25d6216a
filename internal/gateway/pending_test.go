package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellhop-project/bellhop/internal/protocol"
)

func TestPendingRendezvous(t *testing.T) {
	pending := NewPendingReplies()

	waiter := pending.Mint()
	assert.Equal(t, 1, pending.Outstanding())

	reply := protocol.Reply(protocol.TagCheckAvailable, waiter.ID())
	require.True(t, pending.Fulfil(waiter.ID(), reply))

	got, ok := waiter.Wait(time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.TagCheckAvailable, got.Tag)
	assert.Equal(t, 0, pending.Outstanding())
}

func TestPendingWaitTimeout(t *testing.T) {
	pending := NewPendingReplies()
	waiter := pending.Mint()

	_, ok := waiter.Wait(20 * time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, 0, pending.Outstanding(), "timed-out rendezvous must be cleaned up")

	// A reply arriving after the timeout finds no waiter.
	assert.False(t, pending.Fulfil(waiter.ID(), protocol.Reply(protocol.TagCheckAvailable, waiter.ID())))
}

func TestPendingUnknownCorrelation(t *testing.T) {
	pending := NewPendingReplies()
	assert.False(t, pending.Fulfil("999", protocol.Reply(protocol.TagCheckAvailable, "999")))
}

func TestPendingMintsUniqueIDs(t *testing.T) {
	pending := NewPendingReplies()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		w := pending.Mint()
		assert.False(t, seen[w.ID()], "duplicate correlation ID %s", w.ID())
		seen[w.ID()] = true
	}
	assert.Equal(t, 100, pending.Outstanding())
}

func TestPendingFulfilOnce(t *testing.T) {
	pending := NewPendingReplies()
	waiter := pending.Mint()

	reply := protocol.Reply(protocol.TagReserveSucceed, waiter.ID(), "S101,2")
	assert.True(t, pending.Fulfil(waiter.ID(), reply))
	assert.False(t, pending.Fulfil(waiter.ID(), reply), "rendezvous is single use")
}
