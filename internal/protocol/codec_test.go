package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDatagram(t *testing.T) {
	msg := ForwardedRequest(TagCheckRequest, "42", "S101")
	data := Encode(msg)
	assert.Equal(t, "CH\n42\nS101", string(data))

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	corr, err := decoded.Correlation()
	require.NoError(t, err)
	assert.Equal(t, "42", corr)

	room, err := decoded.RoomCode()
	require.NoError(t, err)
	assert.Equal(t, "S101", room)
}

func TestDecodeReserveSucceed(t *testing.T) {
	msg, err := Decode([]byte("RE_1\n7\nS101,3"))
	require.NoError(t, err)

	code, count, err := msg.RoomStatus()
	require.NoError(t, err)
	assert.Equal(t, "S101", code)
	assert.Equal(t, 3, count)
}

func TestDecodeInit(t *testing.T) {
	msg, err := Decode([]byte("INIT\nS101,5\nS102,0"))
	require.NoError(t, err)
	assert.Equal(t, TagInit, msg.Tag)
	assert.Len(t, msg.Fields, 2)

	// Empty announcement is a valid table.
	msg, err = Decode([]byte("INIT"))
	require.NoError(t, err)
	assert.Empty(t, msg.Fields)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"unknown tag":    "NOPE\n1",
		"missing fields": "CH\n42",
		"extra fields":   "CH_1\n42\nmore",
		"bad init line":  "INIT\nS101",
		"bad init count": "INIT\nS101,x",
		"negative count": "INIT\nS101,-1",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			var formatErr *FormatError
			assert.ErrorAs(t, err, &formatErr)
		})
	}
}

func TestReadMessageStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Message{Tag: TagLoginRequest, Fields: []string{"dei,sdvv"}}))
	require.NoError(t, WriteMessage(&buf, Message{Tag: TagCheckRequest, Fields: []string{"S101"}}))
	require.NoError(t, WriteMessage(&buf, Result(TagCheckAvailable)))

	r := bufio.NewReader(&buf)

	msg, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, TagLoginRequest, msg.Tag)
	assert.Equal(t, []string{"dei,sdvv"}, msg.Fields)

	msg, err = ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, TagCheckRequest, msg.Tag)
	assert.Equal(t, []string{"S101"}, msg.Fields)

	msg, err = ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, TagCheckAvailable, msg.Tag)
	assert.Empty(t, msg.Fields)

	_, err = ReadMessage(r)
	assert.Equal(t, io.EOF, err)
}

func TestReadMessageMidMessageEOF(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("LI\n"))
	_, err := ReadMessage(r)
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestReadMessageUnknownTag(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("WHAT\n"))
	_, err := ReadMessage(r)
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestParseRoomStatus(t *testing.T) {
	code, count, err := ParseRoomStatus("S101,5")
	require.NoError(t, err)
	assert.Equal(t, "S101", code)
	assert.Equal(t, 5, count)

	// Whitespace after the comma matches the inventory file format.
	code, count, err = ParseRoomStatus("D201, 12")
	require.NoError(t, err)
	assert.Equal(t, "D201", code)
	assert.Equal(t, 12, count)

	for _, bad := range []string{"", "S101", ",5", "S101,", "S101,abc", "S101,-2"} {
		_, _, err := ParseRoomStatus(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestParseCredentials(t *testing.T) {
	user, pass, err := ParseCredentials("dei,sdvv")
	require.NoError(t, err)
	assert.Equal(t, "dei", user)
	assert.Equal(t, "sdvv", pass)

	// Only the first comma splits; passwords may contain commas.
	user, pass, err = ParseCredentials("dei,sd,vv")
	require.NoError(t, err)
	assert.Equal(t, "dei", user)
	assert.Equal(t, "sd,vv", pass)

	// Blank password marks a guest request.
	user, pass, err = ParseCredentials("dei,")
	require.NoError(t, err)
	assert.Equal(t, "dei", user)
	assert.Equal(t, "", pass)

	_, _, err = ParseCredentials("no-comma")
	assert.Error(t, err)
}
