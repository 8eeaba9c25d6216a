package gateway

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellhop-project/bellhop/internal/protocol"
)

// recordingSender captures datagrams instead of sending them.
type recordingSender struct {
	sent []sentDatagram
	err  error
}

type sentDatagram struct {
	msg  protocol.Message
	addr *net.UDPAddr
}

func (s *recordingSender) Send(data []byte, addr *net.UDPAddr) error {
	if s.err != nil {
		return s.err
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, sentDatagram{msg: msg, addr: addr})
	return nil
}

func testPartitions(t *testing.T) map[string]*net.UDPAddr {
	t.Helper()
	s, err := net.ResolveUDPAddr("udp", "127.0.0.1:41902")
	require.NoError(t, err)
	d, err := net.ResolveUDPAddr("udp", "127.0.0.1:42902")
	require.NoError(t, err)
	return map[string]*net.UDPAddr{"S": s, "D": d}
}

func TestPartition(t *testing.T) {
	assert.Equal(t, "S", Partition("S101"))
	assert.Equal(t, "D", Partition("D"))
	assert.Equal(t, "", Partition(""))
}

func TestRouterOwns(t *testing.T) {
	router := NewRouter(&recordingSender{}, testPartitions(t), NewPendingReplies(), zerolog.Nop())

	assert.True(t, router.Owns("S101"))
	assert.True(t, router.Owns("D201"))
	assert.False(t, router.Owns("U301"))
	assert.False(t, router.Owns(""))
}

func TestRouterForward(t *testing.T) {
	sender := &recordingSender{}
	pending := NewPendingReplies()
	router := NewRouter(sender, testPartitions(t), pending, zerolog.Nop())

	waiter, err := router.Forward(protocol.TagCheckRequest, "S101")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	sent := sender.sent[0]
	assert.Equal(t, protocol.TagCheckRequest, sent.msg.Tag)
	assert.Equal(t, []string{waiter.ID(), "S101"}, sent.msg.Fields)
	assert.Equal(t, 41902, sent.addr.Port)
	assert.Equal(t, 1, pending.Outstanding())

	// A second forward gets a fresh correlation.
	waiter2, err := router.Forward(protocol.TagReserveRequest, "D201")
	require.NoError(t, err)
	assert.NotEqual(t, waiter.ID(), waiter2.ID())
	assert.Equal(t, 42902, sender.sent[1].addr.Port)
}

func TestRouterForwardUnknownPartition(t *testing.T) {
	sender := &recordingSender{}
	pending := NewPendingReplies()
	router := NewRouter(sender, testPartitions(t), pending, zerolog.Nop())

	_, err := router.Forward(protocol.TagCheckRequest, "U301")
	assert.Error(t, err)
	assert.Empty(t, sender.sent, "no datagram may be sent for an unowned room code")
	assert.Equal(t, 0, pending.Outstanding())
}

func TestRouterForwardSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("network down")}
	pending := NewPendingReplies()
	router := NewRouter(sender, testPartitions(t), pending, zerolog.Nop())

	_, err := router.Forward(protocol.TagCheckRequest, "S101")
	assert.Error(t, err)
	assert.Equal(t, 0, pending.Outstanding(), "failed forward must not leak a rendezvous")
}

func TestRouterForwardThenFulfil(t *testing.T) {
	sender := &recordingSender{}
	pending := NewPendingReplies()
	router := NewRouter(sender, testPartitions(t), pending, zerolog.Nop())

	waiter, err := router.Forward(protocol.TagReserveRequest, "S101")
	require.NoError(t, err)

	go func() {
		pending.Fulfil(waiter.ID(), protocol.Reply(protocol.TagReserveSucceed, waiter.ID(), "S101,4"))
	}()

	reply, ok := waiter.Wait(time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.TagReserveSucceed, reply.Tag)
}
