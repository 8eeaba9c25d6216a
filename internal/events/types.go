// Package events defines event types and the asynchronous EventBus that
// connects the gateway's protocol engine to its observers (audit log,
// telemetry, admin surfaces).
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Client connection lifecycle
	EventClientConnected EventType = "client_connected"
	EventClientClosed    EventType = "client_closed"

	// Session / protocol outcomes
	EventLoginResult   EventType = "login_result"
	EventCheckResult   EventType = "check_result"
	EventReserveResult EventType = "reserve_result"

	// Inventory side
	EventInventoryAnnounced EventType = "inventory_announced"
	EventInventoryUpdated   EventType = "inventory_updated"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event is a single occurrence published on the bus.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ClientConnPayload identifies a client connection.
type ClientConnPayload struct {
	Handle     uint64 `json:"handle"`
	RemoteAddr string `json:"remote_addr"`
}

// LoginResultPayload records the outcome of one login attempt.
type LoginResultPayload struct {
	Handle   uint64    `json:"handle"`
	Username string    `json:"username"`
	Result   string    `json:"result"`
	Member   bool      `json:"member"`
	At       time.Time `json:"at"`
}

// RequestResultPayload records the outcome of one Check or Reserve
// request as relayed back to the client.
type RequestResultPayload struct {
	Handle   uint64    `json:"handle"`
	Username string    `json:"username"`
	Op       string    `json:"op"`
	RoomCode string    `json:"room_code"`
	Result   string    `json:"result"`
	At       time.Time `json:"at"`
}

// InventoryPayload describes an inventory announcement or update from a
// partition node.
type InventoryPayload struct {
	Partition string         `json:"partition"`
	Rooms     map[string]int `json:"rooms,omitempty"`
	RoomCode  string         `json:"room_code,omitempty"`
	Count     int            `json:"count,omitempty"`
}
