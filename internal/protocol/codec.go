package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatError reports a structurally malformed wire message. Decoding
// never panics on bad input; it returns one of these instead.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "malformed message: " + e.Reason
}

// Encode renders a message to its wire form: the tag line followed by
// each payload line, joined by single newlines.
func Encode(m Message) []byte {
	if len(m.Fields) == 0 {
		return []byte(m.Tag)
	}
	return []byte(m.Tag + "\n" + strings.Join(m.Fields, "\n"))
}

// Decode parses a datagram into a Message. The tag must be known and the
// payload line count must match the tag's datagram arity; INIT accepts
// any number of room,count lines but each must parse.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, &FormatError{Reason: "empty datagram"}
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	tag := lines[0]
	fields := lines[1:]

	if tag == TagInit {
		for _, line := range fields {
			if _, _, err := ParseRoomStatus(line); err != nil {
				return Message{}, err
			}
		}
		return Message{Tag: tag, Fields: fields}, nil
	}

	want, ok := datagramFields[tag]
	if !ok {
		return Message{}, &FormatError{Reason: "unknown tag " + strconv.Quote(tag)}
	}
	if len(fields) != want {
		return Message{}, &FormatError{
			Reason: fmt.Sprintf("tag %s expects %d payload lines, got %d", tag, want, len(fields)),
		}
	}
	return Message{Tag: tag, Fields: fields}, nil
}

// ReadMessage reads one message from a client-facing stream. The tag line
// determines how many payload lines follow, so no extra framing is
// needed. Returns io.EOF unchanged when the stream ends cleanly before a
// tag line.
func ReadMessage(r *bufio.Reader) (Message, error) {
	tag, err := readLine(r)
	if err != nil {
		return Message{}, err
	}

	want, ok := streamFields[tag]
	if !ok {
		return Message{}, &FormatError{Reason: "unknown tag " + strconv.Quote(tag)}
	}

	fields := make([]string, 0, want)
	for i := 0; i < want; i++ {
		line, err := readLine(r)
		if err != nil {
			if err == io.EOF {
				return Message{}, &FormatError{Reason: "stream ended mid-message"}
			}
			return Message{}, err
		}
		fields = append(fields, line)
	}
	return Message{Tag: tag, Fields: fields}, nil
}

// WriteMessage writes one message to a client-facing stream, terminated
// by a newline so the peer's line reader can frame it.
func WriteMessage(w io.Writer, m Message) error {
	if _, err := w.Write(append(Encode(m), '\n')); err != nil {
		return fmt.Errorf("write message %s: %w", m.Tag, err)
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ParseRoomStatus parses one "roomCode,count" line. Whitespace after the
// comma is tolerated, matching the inventory file format.
func ParseRoomStatus(line string) (string, int, error) {
	code, countStr, ok := strings.Cut(line, ",")
	if !ok || code == "" {
		return "", 0, &FormatError{Reason: "bad room status line " + strconv.Quote(line)}
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count < 0 {
		return "", 0, &FormatError{Reason: "bad room count in " + strconv.Quote(line)}
	}
	return code, count, nil
}

// FormatRoomStatus renders a room,count pair for the wire.
func FormatRoomStatus(code string, count int) string {
	return code + "," + strconv.Itoa(count)
}

// ParseCredentials splits a login payload line into its username and
// password halves. The username never contains a comma; the password may.
func ParseCredentials(line string) (username, password string, err error) {
	username, password, ok := strings.Cut(line, ",")
	if !ok {
		return "", "", &FormatError{Reason: "bad credentials line"}
	}
	return username, password, nil
}

// FormatCredentials renders a username/password pair for the wire.
// Callers obscure both halves first.
func FormatCredentials(username, password string) string {
	return username + "," + password
}
