package gateway

import "sync"

// InventoryView is the gateway's observational copy of global room
// availability, assembled from the INIT announcements and the updated
// counts carried by reserve-succeeded replies. It exists for display and
// the admin surfaces only; routing decisions are made purely from the
// room code's partition prefix, and the authoritative counts live in the
// inventory nodes.
type InventoryView struct {
	mu    sync.RWMutex
	rooms map[string]int
}

// NewInventoryView creates an empty view.
func NewInventoryView() *InventoryView {
	return &InventoryView{rooms: make(map[string]int)}
}

// Merge folds a batch of room,count pairs into the view.
func (v *InventoryView) Merge(rooms map[string]int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for code, count := range rooms {
		v.rooms[code] = count
	}
}

// Set records one room's updated count.
func (v *InventoryView) Set(code string, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rooms[code] = count
}

// Get returns one room's last observed count.
func (v *InventoryView) Get(code string) (int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	count, ok := v.rooms[code]
	return count, ok
}

// Snapshot returns a copy of the whole view.
func (v *InventoryView) Snapshot() map[string]int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]int, len(v.rooms))
	for code, count := range v.rooms {
		out[code] = count
	}
	return out
}
