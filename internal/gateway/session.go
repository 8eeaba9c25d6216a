// Package gateway implements the client-facing broker: the TCP listener
// and per-connection handlers, the login state machine, the router that
// fans requests out to UDP inventory nodes, and the backend listener
// that correlates their asynchronous replies back to waiting
// connections.
package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Session is the per-connection authentication state. It is created with
// zero values when a connection is accepted, mutated exactly once by a
// successful login, and removed when the connection closes.
type Session struct {
	Handle        uint64 `json:"handle"`
	Name          string `json:"name"`
	Authenticated bool   `json:"authenticated"`
	Member        bool   `json:"member"`
	RemoteAddr    string `json:"remote_addr"`
}

// SessionTable is the process-wide map from connection handle to
// session. Each connection handler owns its own entry, but the table
// structure itself is shared across handlers and the admin surfaces, so
// all access goes through the lock.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[uint64]Session
}

// NewSessionTable creates an empty SessionTable.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[uint64]Session),
	}
}

// Create inserts the default unauthenticated session for a handle.
func (t *SessionTable) Create(handle uint64, remoteAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[handle] = Session{Handle: handle, RemoteAddr: remoteAddr}
	log.Debug().Uint64("handle", handle).Msg("session created")
}

// Get returns the session for a handle.
func (t *SessionTable) Get(handle uint64) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[handle]
	return s, ok
}

// Set replaces the session for a handle.
func (t *SessionTable) Set(handle uint64, s Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[handle] = s
}

// Remove deletes a handle's session.
func (t *SessionTable) Remove(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[handle]; ok {
		delete(t.sessions, handle)
		log.Debug().Uint64("handle", handle).Msg("session removed")
	}
}

// Count returns the number of live sessions.
func (t *SessionTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// All returns a copy of every live session.
func (t *SessionTable) All() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}
