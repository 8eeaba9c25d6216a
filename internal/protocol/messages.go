// Package protocol implements the line-oriented text protocol spoken
// between clients, the gateway, and the inventory nodes. Every message is
// a UTF-8 blob whose first line is an operation tag; the lines after it
// carry the tag-specific payload.
package protocol

// Operation tags exchanged between the client and the gateway, and between
// the gateway and inventory nodes. Tag comparison is exact-string; an
// unknown tag is a format error, never silently ignored.
const (
	// Login exchange (client <-> gateway, TCP).
	TagLoginRequest    = "LI"   // payload: obscure(user),obscure(pass)
	TagLoginFail       = "LI_0" // password mismatch
	TagLoginMember     = "LI_1" // authenticated as member
	TagLoginGuest      = "LI_2" // authenticated as guest
	TagLoginNotFound   = "LI_3" // username not in directory
	TagInvalidUsername = "LI_4" // username shape violation
	TagInvalidPassword = "LI_5" // password shape violation

	// Availability exchange.
	TagCheckRequest     = "CH"   // payload: room code (+ correlation on UDP)
	TagCheckUnavailable = "CH_0" // room exists, count == 0
	TagCheckAvailable   = "CH_1" // room exists, count > 0
	TagCheckNotFound    = "CH_2" // room or partition unknown

	// Reservation exchange.
	TagReserveRequest  = "RE"   // payload: room code (+ correlation on UDP)
	TagReserveFail     = "RE_0" // room exists, count == 0
	TagReserveSucceed  = "RE_1" // decremented; carries room,newCount on UDP
	TagReserveNotFound = "RE_2" // room or partition unknown
	TagReserveDenied   = "RE_3" // non-member attempted a reservation

	// Inventory announcement (node -> gateway, UDP, once at startup).
	TagInit = "INIT" // payload: N lines of room,count
)

// MaxDatagramSize is the largest datagram either side will send or accept.
const MaxDatagramSize = 65535

// Message is a decoded wire message: the operation tag plus the payload
// lines that followed it. Correlation handles and room codes live in
// Fields in tag-specific positions; the typed accessors below pull them
// out so callers never index Fields directly.
type Message struct {
	Tag    string
	Fields []string
}

// datagramFields gives the exact payload line count for each tag on the
// gateway <-> inventory-node datagram channel. INIT is absent because its
// payload is variable length; request and result arities are fixed.
var datagramFields = map[string]int{
	TagCheckRequest:     2, // correlation, room code
	TagReserveRequest:   2, // correlation, room code
	TagCheckUnavailable: 1, // correlation
	TagCheckAvailable:   1,
	TagCheckNotFound:    1,
	TagReserveFail:      1,
	TagReserveSucceed:   2, // correlation, room,newCount
	TagReserveNotFound:  1,
	TagReserveDenied:    1,
}

// streamFields gives the payload line count for each tag on the
// client-facing stream. Results are bare tags; requests carry one line.
var streamFields = map[string]int{
	TagLoginRequest:     1,
	TagCheckRequest:     1,
	TagReserveRequest:   1,
	TagLoginFail:        0,
	TagLoginMember:      0,
	TagLoginGuest:       0,
	TagLoginNotFound:    0,
	TagInvalidUsername:  0,
	TagInvalidPassword:  0,
	TagCheckUnavailable: 0,
	TagCheckAvailable:   0,
	TagCheckNotFound:    0,
	TagReserveFail:      0,
	TagReserveSucceed:   0,
	TagReserveNotFound:  0,
	TagReserveDenied:    0,
}

// IsResult reports whether tag is a terminal result tag (as opposed to a
// request or the INIT announcement).
func IsResult(tag string) bool {
	switch tag {
	case TagLoginFail, TagLoginMember, TagLoginGuest, TagLoginNotFound,
		TagInvalidUsername, TagInvalidPassword,
		TagCheckUnavailable, TagCheckAvailable, TagCheckNotFound,
		TagReserveFail, TagReserveSucceed, TagReserveNotFound, TagReserveDenied:
		return true
	}
	return false
}

// Correlation returns the correlation handle carried by a forwarded
// request or a node reply. It is always the first payload line.
func (m Message) Correlation() (string, error) {
	if _, ok := datagramFields[m.Tag]; !ok {
		return "", &FormatError{Reason: "tag " + m.Tag + " carries no correlation"}
	}
	if len(m.Fields) < 1 {
		return "", &FormatError{Reason: "missing correlation field"}
	}
	return m.Fields[0], nil
}

// RoomCode returns the room code of a forwarded Check/Reserve request.
func (m Message) RoomCode() (string, error) {
	if m.Tag != TagCheckRequest && m.Tag != TagReserveRequest {
		return "", &FormatError{Reason: "tag " + m.Tag + " carries no room code"}
	}
	if len(m.Fields) < 2 {
		return "", &FormatError{Reason: "missing room code field"}
	}
	return m.Fields[1], nil
}

// RoomStatus returns the updated room,count pair carried by a
// reserve-succeeded reply.
func (m Message) RoomStatus() (string, int, error) {
	if m.Tag != TagReserveSucceed {
		return "", 0, &FormatError{Reason: "tag " + m.Tag + " carries no room status"}
	}
	if len(m.Fields) < 2 {
		return "", 0, &FormatError{Reason: "missing room status field"}
	}
	return ParseRoomStatus(m.Fields[1])
}

// ForwardedRequest builds the datagram message the gateway sends to an
// inventory node: the client's operation tag with the correlation handle
// and room code appended.
func ForwardedRequest(tag, correlation, roomCode string) Message {
	return Message{Tag: tag, Fields: []string{correlation, roomCode}}
}

// Reply builds a node reply carrying the correlation handle from the
// request, plus any extra payload lines (the reserve-succeed room status).
func Reply(tag, correlation string, extra ...string) Message {
	return Message{Tag: tag, Fields: append([]string{correlation}, extra...)}
}

// Result builds a bare result message as relayed to the client.
func Result(tag string) Message {
	return Message{Tag: tag}
}
