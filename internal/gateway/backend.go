package gateway

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"

	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/protocol"
	"github.com/bellhop-project/bellhop/internal/util"
)

// BackendListener reads the gateway's UDP socket: INIT announcements
// from starting inventory nodes and the replies to forwarded requests.
// Replies are handed to the correlation registry, which wakes the one
// connection handler waiting on them. A reply whose correlation is
// unknown, typically one that lost the race against a handler timeout,
// is logged and dropped.
type BackendListener struct {
	conn       *net.UDPConn
	pending    *PendingReplies
	view       *InventoryView
	bus        *events.EventBus
	partitions map[string]*net.UDPAddr
	logger     zerolog.Logger
}

// NewBackendListener creates the backend listener over an already-bound
// UDP socket. partitions is the same mapping the router forwards on; it
// is used here only to name the sender in logs and events.
func NewBackendListener(conn *net.UDPConn, pending *PendingReplies, view *InventoryView,
	bus *events.EventBus, partitions map[string]*net.UDPAddr) *BackendListener {
	return &BackendListener{
		conn:       conn,
		pending:    pending,
		view:       view,
		bus:        bus,
		partitions: partitions,
		logger:     util.ComponentLogger("backend_listener"),
	}
}

// Start runs the read loop until the context is cancelled. Malformed
// datagrams and transient read errors are logged and skipped; only a
// closed socket ends the loop.
func (b *BackendListener) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		b.conn.Close()
	}()

	b.logger.Info().Str("addr", b.conn.LocalAddr().String()).Msg("backend listener started")

	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		n, sender, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				b.logger.Info().Msg("backend listener stopping")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			b.logger.Error().Err(err).Msg("udp read error")
			continue
		}

		msg, err := protocol.Decode(buf[:n])
		if err != nil {
			b.logger.Warn().
				Err(err).
				Str("sender", sender.String()).
				Msg("malformed datagram, dropping")
			continue
		}

		b.handle(ctx, msg, sender)
	}
}

func (b *BackendListener) handle(ctx context.Context, msg protocol.Message, sender *net.UDPAddr) {
	if msg.Tag == protocol.TagInit {
		b.handleInit(ctx, msg, sender)
		return
	}

	correlation, err := msg.Correlation()
	if err != nil {
		b.logger.Warn().Err(err).Str("tag", msg.Tag).Msg("reply without correlation, dropping")
		return
	}

	// A succeeded reservation carries the room's new count; fold it into
	// the observational view before waking the handler.
	if msg.Tag == protocol.TagReserveSucceed {
		if code, count, err := msg.RoomStatus(); err == nil {
			b.view.Set(code, count)
			b.bus.Emit(ctx, events.Event{
				Type:   events.EventInventoryUpdated,
				Source: "backend_listener",
				Payload: events.InventoryPayload{
					Partition: b.partitionFor(sender),
					RoomCode:  code,
					Count:     count,
				},
			})
		} else {
			b.logger.Warn().Err(err).Msg("reserve reply with bad room status")
		}
	}

	if !b.pending.Fulfil(correlation, msg) {
		b.logger.Warn().
			Str("correlation", correlation).
			Str("tag", msg.Tag).
			Str("sender", sender.String()).
			Msg("reply for unknown correlation, dropping")
		return
	}

	b.logger.Debug().
		Str("correlation", correlation).
		Str("tag", msg.Tag).
		Msg("reply delivered")
}

// handleInit folds a node's announced inventory into the view. The
// announcement is informational; routing is static configuration and a
// node that never announces is still routed to.
func (b *BackendListener) handleInit(ctx context.Context, msg protocol.Message, sender *net.UDPAddr) {
	rooms := make(map[string]int, len(msg.Fields))
	for _, line := range msg.Fields {
		code, count, err := protocol.ParseRoomStatus(line)
		if err != nil {
			b.logger.Warn().Err(err).Msg("bad line in inventory announcement")
			continue
		}
		rooms[code] = count
	}
	b.view.Merge(rooms)

	partition := b.partitionFor(sender)
	b.logger.Info().
		Str("partition", partition).
		Str("sender", sender.String()).
		Int("rooms", len(rooms)).
		Msg("inventory node announced")

	b.bus.Emit(ctx, events.Event{
		Type:   events.EventInventoryAnnounced,
		Source: "backend_listener",
		Payload: events.InventoryPayload{
			Partition: partition,
			Rooms:     rooms,
		},
	})
}

// partitionFor names the partition behind a sender address, or "?" when
// the address matches no configured node.
func (b *BackendListener) partitionFor(sender *net.UDPAddr) string {
	for name, addr := range b.partitions {
		if addr.IP.Equal(sender.IP) && addr.Port == sender.Port {
			return name
		}
	}
	return "?"
}
