package gateway

import (
	"strconv"
	"sync"
	"time"

	"github.com/bellhop-project/bellhop/internal/protocol"
)

// PendingReplies is the correlation registry: every forwarded request
// registers a one-shot rendezvous keyed by a process-local correlation
// ID, and the backend listener fulfils it when the matching reply
// arrives. IDs are minted from a monotonic counter, never from any
// transport-layer descriptor, and at most one handler ever waits on a
// given ID.
type PendingReplies struct {
	mu      sync.Mutex
	next    uint64
	waiting map[string]chan protocol.Message
}

// NewPendingReplies creates an empty registry.
func NewPendingReplies() *PendingReplies {
	return &PendingReplies{
		waiting: make(map[string]chan protocol.Message),
	}
}

// Mint registers a new rendezvous and returns its waiter. The channel is
// buffered so the backend listener never blocks on delivery.
func (p *PendingReplies) Mint() *Waiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	id := strconv.FormatUint(p.next, 10)
	ch := make(chan protocol.Message, 1)
	p.waiting[id] = ch
	return &Waiter{id: id, ch: ch, registry: p}
}

// Fulfil delivers a reply to the waiter registered under id, consuming
// the rendezvous. Returns false when no such waiter exists (late reply
// after a timeout, or a correlation the gateway never minted).
func (p *PendingReplies) Fulfil(id string, msg protocol.Message) bool {
	p.mu.Lock()
	ch, ok := p.waiting[id]
	if ok {
		delete(p.waiting, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- msg
	return true
}

// abandon discards a rendezvous that will no longer be waited on.
func (p *PendingReplies) abandon(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiting, id)
}

// Outstanding returns the number of registered rendezvous.
func (p *PendingReplies) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}

// Waiter is one side of a single-use rendezvous.
type Waiter struct {
	id       string
	ch       chan protocol.Message
	registry *PendingReplies
}

// ID returns the correlation ID carried on the wire.
func (w *Waiter) ID() string {
	return w.id
}

// Wait blocks until the reply is delivered or the timeout elapses. On
// timeout the rendezvous is abandoned so a late reply is dropped rather
// than delivered to a handler that has moved on.
func (w *Waiter) Wait(timeout time.Duration) (protocol.Message, bool) {
	select {
	case msg := <-w.ch:
		return msg, true
	case <-time.After(timeout):
		w.registry.abandon(w.id)
		// A reply may have raced the abandon; drain it if so.
		select {
		case msg := <-w.ch:
			return msg, true
		default:
			return protocol.Message{}, false
		}
	}
}
