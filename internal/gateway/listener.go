package gateway

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/network"
)

// ClientListener accepts client TCP connections and runs each one
// through its own ConnectionHandler goroutine. Connection handles are
// minted from a process-local counter; they identify sessions and never
// leak any transport descriptor.
type ClientListener struct {
	addr         string
	sessions     *SessionTable
	router       *Router
	directory    *MemberDirectory
	bus          *events.EventBus
	replyTimeout time.Duration

	listener   net.Listener
	nextHandle uint64
	wg         sync.WaitGroup
}

// NewClientListener creates a listener for the given TCP address.
func NewClientListener(addr string, sessions *SessionTable, router *Router,
	directory *MemberDirectory, bus *events.EventBus, replyTimeout time.Duration) *ClientListener {
	return &ClientListener{
		addr:         addr,
		sessions:     sessions,
		router:       router,
		directory:    directory,
		bus:          bus,
		replyTimeout: replyTimeout,
	}
}

// Start binds and runs the accept loop until the context is cancelled.
// A bind failure is returned to the caller; accept failures after a
// successful bind are logged and the loop continues.
func (l *ClientListener) Start(ctx context.Context) error {
	// SO_REUSEADDR allows immediate rebinding after a restart.
	lc := network.ReuseAddrListenConfig()
	var err error
	l.listener, err = lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return err
	}

	log.Info().Str("addr", l.addr).Msg("client listener started")

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Msg("client listener stopping")
				l.wg.Wait()
				return nil
			default:
				log.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		handle := atomic.AddUint64(&l.nextHandle, 1)
		log.Debug().
			Uint64("handle", handle).
			Str("remote", conn.RemoteAddr().String()).
			Msg("new client connection")

		handler := NewConnectionHandler(handle, conn, l.sessions, l.router,
			l.directory, l.bus, l.replyTimeout)

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			handler.Run(ctx)
		}()
	}
}

// Addr returns the bound listen address, useful when the configured port
// is 0.
func (l *ClientListener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Stop closes the listening socket; in-flight connections drain on their
// own as the shared context is cancelled.
func (l *ClientListener) Stop() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
