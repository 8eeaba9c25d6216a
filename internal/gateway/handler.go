package gateway

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/protocol"
	"github.com/bellhop-project/bellhop/internal/util"
)

// Credential shape policies. The obscure transform preserves character
// class and length, so the shapes hold for the wire form and the
// revealed form alike.
var (
	usernameShape = regexp.MustCompile(`^[a-z]{5,50}$`)
	passwordShape = regexp.MustCompile(`^.{5,50}$`)
)

// ConnectionHandler runs one client connection through its state
// machine: Login until a successful authentication, then Active until
// the stream ends. It is the unit of concurrency on the client-facing
// side; one goroutine per accepted connection.
type ConnectionHandler struct {
	handle       uint64
	conn         net.Conn
	reader       *bufio.Reader
	sessions     *SessionTable
	router       *Router
	directory    *MemberDirectory
	bus          *events.EventBus
	replyTimeout time.Duration
	logger       zerolog.Logger
}

// NewConnectionHandler wires a handler for an accepted connection.
func NewConnectionHandler(handle uint64, conn net.Conn, sessions *SessionTable,
	router *Router, directory *MemberDirectory, bus *events.EventBus,
	replyTimeout time.Duration) *ConnectionHandler {
	return &ConnectionHandler{
		handle:       handle,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		sessions:     sessions,
		router:       router,
		directory:    directory,
		bus:          bus,
		replyTimeout: replyTimeout,
		logger: util.ComponentLogger("conn_handler").With().
			Uint64("handle", handle).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// Run processes the connection until end-of-stream or an unrecoverable
// error, then removes the session and releases the connection.
func (h *ConnectionHandler) Run(ctx context.Context) {
	h.sessions.Create(h.handle, h.conn.RemoteAddr().String())
	h.bus.Emit(ctx, events.Event{
		Type:   events.EventClientConnected,
		Source: "gateway",
		Payload: events.ClientConnPayload{
			Handle:     h.handle,
			RemoteAddr: h.conn.RemoteAddr().String(),
		},
	})

	defer func() {
		h.sessions.Remove(h.handle)
		h.conn.Close()
		h.bus.Emit(ctx, events.Event{
			Type:    events.EventClientClosed,
			Source:  "gateway",
			Payload: events.ClientConnPayload{Handle: h.handle},
		})
		h.logger.Info().Msg("connection closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := protocol.ReadMessage(h.reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var formatErr *protocol.FormatError
			if errors.As(err, &formatErr) {
				// A framing break on a stream cannot be resynced.
				h.logger.Warn().Err(err).Msg("malformed request, closing connection")
				return
			}
			h.logger.Error().Err(err).Msg("read error, closing connection")
			return
		}

		session, ok := h.sessions.Get(h.handle)
		if !ok {
			return
		}

		switch {
		case msg.Tag == protocol.TagLoginRequest:
			h.handleLogin(ctx, msg)
		case !session.Authenticated:
			// No availability or reservation request is processed
			// before authentication.
			h.logger.Warn().Str("tag", msg.Tag).Msg("request before login, dropping")
		case msg.Tag == protocol.TagCheckRequest || msg.Tag == protocol.TagReserveRequest:
			h.handleRequest(ctx, session, msg)
		default:
			h.logger.Warn().Str("tag", msg.Tag).Msg("unexpected tag, dropping")
		}
	}
}

// handleLogin runs one iteration of the login state machine. The blank
// password selects the guest path, which always succeeds; the member
// path checks shape, directory presence, and password match in that
// precedence order. The session is mutated only on success.
func (h *ConnectionHandler) handleLogin(ctx context.Context, msg protocol.Message) {
	obscuredUser, obscuredPass, err := protocol.ParseCredentials(msg.Fields[0])
	if err != nil {
		h.logger.Warn().Err(err).Msg("bad credentials line")
		h.reply(protocol.TagLoginFail)
		return
	}

	username := protocol.Reveal(obscuredUser)
	session, _ := h.sessions.Get(h.handle)

	// Guest path: no shape checks, no directory lookup.
	if obscuredPass == "" {
		session.Name = username
		session.Authenticated = true
		session.Member = false
		h.sessions.Set(h.handle, session)
		h.logger.Info().Str("user", username).Msg("guest login accepted")
		h.replyLogin(ctx, username, protocol.TagLoginGuest, false)
		return
	}

	// Member path.
	h.logger.Info().Str("user", username).Msg("member authentication request")
	result := protocol.TagLoginFail
	switch {
	case !usernameShape.MatchString(username):
		result = protocol.TagInvalidUsername
	case !passwordShape.MatchString(protocol.Reveal(obscuredPass)):
		result = protocol.TagInvalidPassword
	default:
		stored, found := h.directory.Lookup(obscuredUser)
		switch {
		case !found:
			result = protocol.TagLoginNotFound
		case stored == obscuredPass:
			session.Name = username
			session.Authenticated = true
			session.Member = true
			h.sessions.Set(h.handle, session)
			result = protocol.TagLoginMember
			h.logger.Info().Str("user", username).Msg("member login accepted")
		default:
			result = protocol.TagLoginFail
		}
	}

	h.replyLogin(ctx, username, result, result == protocol.TagLoginMember)
}

// handleRequest serves one Check or Reserve in the Active state:
// authorization first, then local partition routing, then the forward
// and the bounded correlation wait.
func (h *ConnectionHandler) handleRequest(ctx context.Context, session Session, msg protocol.Message) {
	roomCode := msg.Fields[0]
	op := msg.Tag
	notFound := protocol.TagCheckNotFound
	if op == protocol.TagReserveRequest {
		notFound = protocol.TagReserveNotFound
	}

	h.logger.Info().
		Str("op", op).
		Str("room", roomCode).
		Str("user", session.Name).
		Msg("request received")

	// Reservations are member-only; the denial never reaches a node.
	if op == protocol.TagReserveRequest && !session.Member {
		h.logger.Info().Str("user", session.Name).Msg("reservation denied for non-member")
		h.replyRequest(ctx, session, op, roomCode, protocol.TagReserveDenied)
		return
	}

	// Unknown partition: answered locally, no datagram is sent.
	if !h.router.Owns(roomCode) {
		h.logger.Info().Str("room", roomCode).Msg("no partition owns room code")
		h.replyRequest(ctx, session, op, roomCode, notFound)
		return
	}

	waiter, err := h.router.Forward(op, roomCode)
	if err != nil {
		h.logger.Error().Err(err).Msg("forward failed")
		h.replyRequest(ctx, session, op, roomCode, notFound)
		return
	}

	reply, ok := waiter.Wait(h.replyTimeout)
	if !ok {
		h.logger.Warn().
			Str("room", roomCode).
			Dur("timeout", h.replyTimeout).
			Msg("inventory node did not answer in time")
		h.replyRequest(ctx, session, op, roomCode, notFound)
		return
	}

	// Relay the result tag verbatim; the payload stays at the gateway.
	h.replyRequest(ctx, session, op, roomCode, reply.Tag)
}

func (h *ConnectionHandler) replyLogin(ctx context.Context, username, result string, member bool) {
	h.reply(result)
	h.bus.Emit(ctx, events.Event{
		Type:   events.EventLoginResult,
		Source: "gateway",
		Payload: events.LoginResultPayload{
			Handle:   h.handle,
			Username: username,
			Result:   result,
			Member:   member,
			At:       time.Now().UTC(),
		},
	})
}

func (h *ConnectionHandler) replyRequest(ctx context.Context, session Session, op, roomCode, result string) {
	h.reply(result)

	eventType := events.EventCheckResult
	if op == protocol.TagReserveRequest {
		eventType = events.EventReserveResult
	}
	h.bus.Emit(ctx, events.Event{
		Type:   eventType,
		Source: "gateway",
		Payload: events.RequestResultPayload{
			Handle:   h.handle,
			Username: session.Name,
			Op:       op,
			RoomCode: roomCode,
			Result:   result,
			At:       time.Now().UTC(),
		},
	})
}

// reply sends a bare result tag to the client. A failed write is left to
// the next read to surface as a closed connection.
func (h *ConnectionHandler) reply(tag string) {
	if err := protocol.WriteMessage(h.conn, protocol.Result(tag)); err != nil {
		h.logger.Error().Err(err).Str("tag", tag).Msg("failed to send reply")
	}
}
