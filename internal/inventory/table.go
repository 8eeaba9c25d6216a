// Package inventory implements the partition-owning backend node: the
// room-availability table and the UDP request/response loop that answers
// the gateway's Check and Reserve requests.
package inventory

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bellhop-project/bellhop/internal/protocol"
)

// CheckStatus is the outcome of an availability lookup.
type CheckStatus int

const (
	CheckNotFound CheckStatus = iota
	CheckUnavailable
	CheckAvailable
)

// ReserveStatus is the outcome of a reservation attempt.
type ReserveStatus int

const (
	ReserveNotFound ReserveStatus = iota
	ReserveFailed
	ReserveSucceeded
)

// Table is one partition's room-availability table: room code to
// available-unit count. The count never goes negative; Reserve is an
// atomic check-and-decrement under the table lock, which preserves that
// invariant even if the node is ever driven from multiple goroutines.
type Table struct {
	mu    sync.Mutex
	rooms map[string]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{rooms: make(map[string]int)}
}

// Load replaces the table contents with the given records. The last
// entry for a duplicate room code wins.
func (t *Table) Load(records map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms = make(map[string]int, len(records))
	for code, count := range records {
		t.rooms[code] = count
	}
}

// Set stores one room's count, overwriting any previous value.
func (t *Table) Set(code string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms[code] = count
}

// Check looks up a room without mutating anything.
func (t *Table) Check(code string) CheckStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.rooms[code]
	switch {
	case !ok:
		return CheckNotFound
	case count > 0:
		return CheckAvailable
	default:
		return CheckUnavailable
	}
}

// Reserve decrements a room's count by exactly one if it is positive.
// The decision and the decrement happen under one lock acquisition, so
// concurrent reservations for the same room can never oversell it.
func (t *Table) Reserve(code string) (ReserveStatus, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.rooms[code]
	switch {
	case !ok:
		return ReserveNotFound, 0
	case count > 0:
		t.rooms[code] = count - 1
		return ReserveSucceeded, count - 1
	default:
		return ReserveFailed, 0
	}
}

// Count returns one room's current count.
func (t *Table) Count(code string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	count, ok := t.rooms[code]
	return count, ok
}

// Snapshot returns a copy of the table contents.
func (t *Table) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.rooms))
	for code, count := range t.rooms {
		out[code] = count
	}
	return out
}

// Lines renders the table as sorted room,count wire lines, the payload
// of the INIT announcement.
func (t *Table) Lines() []string {
	snap := t.Snapshot()
	codes := make([]string, 0, len(snap))
	for code := range snap {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	lines := make([]string, 0, len(codes))
	for _, code := range codes {
		lines = append(lines, protocol.FormatRoomStatus(code, snap[code]))
	}
	return lines
}

// LoadFile reads a line-oriented "roomCode,count" file into a fresh
// record set. Malformed lines are skipped; the last entry for a
// duplicate room code wins.
func LoadFile(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory file %s: %w", path, err)
	}
	defer f.Close()

	records := make(map[string]int)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		code, count, err := protocol.ParseRoomStatus(scanner.Text())
		if err != nil {
			continue
		}
		records[code] = count
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory file %s: %w", path, err)
	}
	return records, nil
}
