package gateway

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/bellhop-project/bellhop/internal/protocol"
)

// Sender sends one datagram to an inventory node. The production
// implementation wraps the gateway's UDP socket; tests substitute a
// recorder.
type Sender interface {
	Send(data []byte, addr *net.UDPAddr) error
}

// udpSender is the production Sender backed by the gateway's UDP socket,
// the same socket the backend listener reads replies from.
type udpSender struct {
	conn *net.UDPConn
}

func (s *udpSender) Send(data []byte, addr *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(data, addr)
	return err
}

// Router decides where an authenticated request goes: the partition
// owning the room code's first character. It mints the correlation ID
// for each forwarded request and registers the rendezvous the issuing
// connection handler then blocks on. Forwarding is fire-and-forget; the
// handler's bounded wait is the only retry-free recovery.
type Router struct {
	sender     Sender
	partitions map[string]*net.UDPAddr
	pending    *PendingReplies
	logger     zerolog.Logger
}

// NewRouter creates a router over a static partition to address mapping.
func NewRouter(sender Sender, partitions map[string]*net.UDPAddr, pending *PendingReplies, logger zerolog.Logger) *Router {
	return &Router{
		sender:     sender,
		partitions: partitions,
		pending:    pending,
		logger:     logger,
	}
}

// Partition returns the partition identifier for a room code: its first
// character. Empty room codes belong to no partition.
func Partition(roomCode string) string {
	if roomCode == "" {
		return ""
	}
	return roomCode[:1]
}

// Owns reports whether any configured inventory node owns the room
// code's partition.
func (r *Router) Owns(roomCode string) bool {
	_, ok := r.partitions[Partition(roomCode)]
	return ok
}

// Forward sends a Check or Reserve request to the owning inventory node
// and returns the waiter for its reply. The caller must either Wait on
// the waiter or the rendezvous leaks until fulfilled; Wait's timeout
// cleans up after an unanswered forward.
func (r *Router) Forward(op, roomCode string) (*Waiter, error) {
	partition := Partition(roomCode)
	addr, ok := r.partitions[partition]
	if !ok {
		return nil, fmt.Errorf("no inventory node owns partition %q", partition)
	}

	waiter := r.pending.Mint()
	msg := protocol.ForwardedRequest(op, waiter.ID(), roomCode)

	if err := r.sender.Send(protocol.Encode(msg), addr); err != nil {
		r.pending.abandon(waiter.ID())
		return nil, fmt.Errorf("failed to forward %s to partition %s: %w", op, partition, err)
	}

	r.logger.Debug().
		Str("op", op).
		Str("room", roomCode).
		Str("partition", partition).
		Str("correlation", waiter.ID()).
		Msg("request forwarded")

	return waiter, nil
}
