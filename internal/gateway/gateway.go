package gateway

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/network"
	"github.com/bellhop-project/bellhop/internal/util"
)

// Gateway owns the broker's two network surfaces and the shared state
// between them: the client TCP listener on one side, the backend UDP
// socket on the other, with the session table, correlation registry,
// and inventory view in between. Requests are forwarded and replies
// received on the same UDP socket.
type Gateway struct {
	cfg       *config.Config
	bus       *events.EventBus
	sessions  *SessionTable
	pending   *PendingReplies
	view      *InventoryView
	directory *MemberDirectory

	udpConn *net.UDPConn
	clients *ClientListener
	backend *BackendListener
}

// New assembles a gateway from configuration. The member directory is
// loaded here so a missing or unreadable file fails startup rather than
// every login.
func New(cfg *config.Config, bus *events.EventBus) (*Gateway, error) {
	directory, err := LoadMemberDirectory(cfg.GetGateway().MemberFile)
	if err != nil {
		return nil, err
	}
	log.Info().Int("members", directory.Len()).Msg("member directory loaded")

	return &Gateway{
		cfg:       cfg,
		bus:       bus,
		sessions:  NewSessionTable(),
		pending:   NewPendingReplies(),
		view:      NewInventoryView(),
		directory: directory,
	}, nil
}

// Start binds both sockets and runs the backend read loop and the client
// accept loop until the context is cancelled. Bind failures are fatal
// and returned; everything after a successful bind is handled inside
// the loops.
func (g *Gateway) Start(ctx context.Context) error {
	gw := g.cfg.GetGateway()

	partitions, err := resolvePartitions(g.cfg)
	if err != nil {
		return err
	}

	backendAddr := net.JoinHostPort(gw.Host, strconv.Itoa(gw.BackendPort))
	lc := network.ReuseAddrListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", backendAddr)
	if err != nil {
		return fmt.Errorf("failed to bind backend socket on %s: %w", backendAddr, err)
	}
	g.udpConn = pc.(*net.UDPConn)
	log.Info().Str("addr", g.udpConn.LocalAddr().String()).Msg("backend socket bound")

	replyTimeout := time.Duration(gw.ReplyTimeoutSec) * time.Second
	router := NewRouter(&udpSender{conn: g.udpConn}, partitions, g.pending,
		util.ComponentLogger("router"))

	g.backend = NewBackendListener(g.udpConn, g.pending, g.view, g.bus, partitions)
	g.clients = NewClientListener(
		net.JoinHostPort(gw.Host, strconv.Itoa(gw.ClientPort)),
		g.sessions, router, g.directory, g.bus, replyTimeout)

	errCh := make(chan error, 2)
	go func() { errCh <- g.backend.Start(ctx) }()
	go func() { errCh <- g.clients.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	return nil
}

// Stop closes both sockets. Safe to call before Start has bound them.
func (g *Gateway) Stop() {
	if g.clients != nil {
		g.clients.Stop()
	}
	if g.udpConn != nil {
		g.udpConn.Close()
	}
}

// Sessions exposes the live session table to the admin surfaces.
func (g *Gateway) Sessions() *SessionTable { return g.sessions }

// View exposes the observational inventory view to the admin surfaces.
func (g *Gateway) View() *InventoryView { return g.view }

// Pending exposes the correlation registry, mainly for monitoring the
// number of outstanding forwards.
func (g *Gateway) Pending() *PendingReplies { return g.pending }

// ClientAddr returns the bound client listen address once Start has run.
func (g *Gateway) ClientAddr() net.Addr {
	if g.clients == nil {
		return nil
	}
	return g.clients.Addr()
}

// BackendAddr returns the bound backend UDP address once Start has run.
func (g *Gateway) BackendAddr() net.Addr {
	if g.udpConn == nil {
		return nil
	}
	return g.udpConn.LocalAddr()
}

// resolvePartitions turns the configured partition list into the UDP
// address map the router and backend listener share.
func resolvePartitions(cfg *config.Config) (map[string]*net.UDPAddr, error) {
	out := make(map[string]*net.UDPAddr)
	for name, addr := range cfg.PartitionAddrs() {
		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve partition %s address %s: %w", name, addr, err)
		}
		out[name] = udpAddr
	}
	return out, nil
}
