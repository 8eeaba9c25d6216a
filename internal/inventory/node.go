package inventory

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/bellhop-project/bellhop/internal/network"
	"github.com/bellhop-project/bellhop/internal/protocol"
	"github.com/bellhop-project/bellhop/internal/util"
)

// Node is one inventory node: it owns a single partition's Table and
// answers the gateway's forwarded Check/Reserve requests over UDP. The
// node never initiates contact except the one INIT announcement at
// startup; its whole lifecycle is the Serve loop.
type Node struct {
	partition   string
	table       *Table
	gatewayAddr *net.UDPAddr
	conn        *net.UDPConn
	logger      zerolog.Logger
}

// NewNode creates a node for a partition, resolving the gateway's UDP
// address up front.
func NewNode(partition string, table *Table, gatewayAddr string) (*Node, error) {
	addr, err := net.ResolveUDPAddr("udp4", gatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway address %s: %w", gatewayAddr, err)
	}
	return &Node{
		partition:   partition,
		table:       table,
		gatewayAddr: addr,
		logger:      util.ComponentLogger("inventory_node").With().Str("partition", partition).Logger(),
	}, nil
}

// Table returns the node's room table.
func (n *Node) Table() *Table {
	return n.table
}

// LocalAddr returns the bound UDP address, valid after Bind.
func (n *Node) LocalAddr() net.Addr {
	return n.conn.LocalAddr()
}

// Bind creates the node's UDP socket on the given address. Bind failure
// is the one fatal error class in the node's lifecycle.
func (n *Node) Bind(ctx context.Context, listenAddr string) error {
	lc := network.ReuseAddrListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp4", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", listenAddr, err)
	}
	n.conn = pc.(*net.UDPConn)
	n.logger.Info().Str("addr", n.conn.LocalAddr().String()).Msg("inventory node listening")
	return nil
}

// Announce sends the entire table, tagged INIT, to the gateway once.
// There is no acknowledgement and no retry; if the datagram is lost the
// gateway's observational view simply starts without this partition.
func (n *Node) Announce() error {
	msg := protocol.Message{Tag: protocol.TagInit, Fields: n.table.Lines()}
	if _, err := n.conn.WriteToUDP(protocol.Encode(msg), n.gatewayAddr); err != nil {
		return fmt.Errorf("failed to announce inventory: %w", err)
	}
	n.logger.Info().Int("rooms", len(n.table.Snapshot())).Msg("announced inventory to gateway")
	return nil
}

// Serve receives one datagram at a time, decodes it, answers it, and
// replies to the gateway. The loop is strictly sequential: the
// receive-decide-mutate-reply sequence for one datagram completes before
// the next is read, which serializes reservations per room for free.
// Malformed datagrams and transient socket errors are logged and
// dropped, never fatal.
func (n *Node) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		n.conn.Close()
	}()

	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		nr, _, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				n.logger.Info().Msg("inventory node stopping")
				return nil
			default:
				n.logger.Error().Err(err).Msg("UDP read error")
				continue
			}
		}

		msg, err := protocol.Decode(buf[:nr])
		if err != nil {
			n.logger.Warn().Err(err).Msg("dropping malformed datagram")
			continue
		}

		reply, ok := n.handle(msg)
		if !ok {
			continue
		}

		if _, err := n.conn.WriteToUDP(protocol.Encode(reply), n.gatewayAddr); err != nil {
			n.logger.Error().Err(err).Str("tag", reply.Tag).Msg("failed to send reply")
		}
	}
}

// handle answers one decoded request. Every reply carries the request's
// correlation handle unchanged; the gateway depends on that to route the
// reply back to the waiting connection.
func (n *Node) handle(msg protocol.Message) (protocol.Message, bool) {
	correlation, err := msg.Correlation()
	if err != nil {
		n.logger.Warn().Str("tag", msg.Tag).Msg("request without correlation, dropping")
		return protocol.Message{}, false
	}
	roomCode, err := msg.RoomCode()
	if err != nil {
		n.logger.Warn().Str("tag", msg.Tag).Msg("request without room code, dropping")
		return protocol.Message{}, false
	}

	switch msg.Tag {
	case protocol.TagCheckRequest:
		n.logger.Info().Str("room", roomCode).Msg("availability request")
		switch n.table.Check(roomCode) {
		case CheckAvailable:
			return protocol.Reply(protocol.TagCheckAvailable, correlation), true
		case CheckUnavailable:
			return protocol.Reply(protocol.TagCheckUnavailable, correlation), true
		default:
			return protocol.Reply(protocol.TagCheckNotFound, correlation), true
		}

	case protocol.TagReserveRequest:
		n.logger.Info().Str("room", roomCode).Msg("reservation request")
		status, remaining := n.table.Reserve(roomCode)
		switch status {
		case ReserveSucceeded:
			n.logger.Info().Str("room", roomCode).Int("remaining", remaining).Msg("reservation made")
			return protocol.Reply(protocol.TagReserveSucceed, correlation,
				protocol.FormatRoomStatus(roomCode, remaining)), true
		case ReserveFailed:
			return protocol.Reply(protocol.TagReserveFail, correlation), true
		default:
			return protocol.Reply(protocol.TagReserveNotFound, correlation), true
		}

	default:
		n.logger.Warn().Str("tag", msg.Tag).Msg("unexpected tag, dropping")
		return protocol.Message{}, false
	}
}
