// Package client implements the interactive console client: it connects
// to the gateway, walks the user through login, and then loops on
// availability and reservation requests.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bellhop-project/bellhop/internal/protocol"
	"github.com/bellhop-project/bellhop/internal/util"
)

// Client is one interactive session against the gateway.
type Client struct {
	conn     net.Conn
	reader   *bufio.Reader
	stdin    *bufio.Scanner
	username string
	logger   zerolog.Logger
}

// New creates a client reading prompts from in.
func New(in io.Reader) *Client {
	return &Client{
		stdin:  bufio.NewScanner(in),
		logger: util.ComponentLogger("client"),
	}
}

// Connect dials the gateway's TCP address.
func (c *Client) Connect(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway at %s: %w", addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	fmt.Println("Client is up and running.")
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run walks the full session: login until accepted, then the request
// loop until the input stream ends.
func (c *Client) Run() error {
	if err := c.Login(); err != nil {
		return err
	}
	return c.HandleRequests()
}

// Login prompts for credentials until the gateway accepts the user as a
// member or a guest. A blank password requests guest access.
func (c *Client) Login() error {
	for {
		username, ok := c.prompt("Please enter the username: ")
		if !ok {
			return io.EOF
		}
		password, ok := c.prompt("Please enter the password (Press “Enter” to skip for guest): ")
		if !ok {
			return io.EOF
		}

		credentials := protocol.FormatCredentials(protocol.Obscure(username), protocol.Obscure(password))
		msg := protocol.Message{Tag: protocol.TagLoginRequest, Fields: []string{credentials}}
		if err := protocol.WriteMessage(c.conn, msg); err != nil {
			return err
		}

		localPort := localPortOf(c.conn)
		if password == "" {
			fmt.Printf("%s sent a guest request to the main server using TCP over port %s.\n", username, localPort)
		} else {
			fmt.Printf("%s sent an authentication request to the main server.\n", username)
		}

		reply, err := protocol.ReadMessage(c.reader)
		if err != nil {
			return fmt.Errorf("failed to read login reply: %w", err)
		}

		switch reply.Tag {
		case protocol.TagLoginGuest:
			c.username = username
			fmt.Printf("Welcome guest %s!\n", username)
			return nil
		case protocol.TagLoginMember:
			c.username = username
			fmt.Printf("Welcome member %s!\n", username)
			return nil
		case protocol.TagLoginFail:
			fmt.Println("Failed login. Password does not match.")
		case protocol.TagLoginNotFound:
			fmt.Println("Failed login. Username does not exist.")
		case protocol.TagInvalidUsername:
			fmt.Println("Failed login. Invalid username")
		case protocol.TagInvalidPassword:
			fmt.Println("Failed login. Invalid password")
		default:
			c.logger.Warn().Str("tag", reply.Tag).Msg("unexpected login reply")
		}
	}
}

// HandleRequests loops on availability and reservation requests until
// the input stream ends.
func (c *Client) HandleRequests() error {
	for {
		roomCode, ok := c.prompt("Please enter the room layout code: ")
		if !ok {
			return nil
		}
		op, ok := c.prompt("Would you like to search for the availability or make a reservation? " +
			"(Enter “Availability” to search for the availability or Enter “Reservation” to make a reservation ): ")
		if !ok {
			return nil
		}

		var tag string
		switch op {
		case "Availability":
			tag = protocol.TagCheckRequest
		case "Reservation":
			tag = protocol.TagReserveRequest
		default:
			continue
		}

		msg := protocol.Message{Tag: tag, Fields: []string{roomCode}}
		if err := protocol.WriteMessage(c.conn, msg); err != nil {
			return err
		}
		if tag == protocol.TagCheckRequest {
			fmt.Printf("%s sent an availability request to the main server.\n", c.username)
		} else {
			fmt.Printf("%s sent a reservation request to the main server.\n", c.username)
		}

		reply, err := protocol.ReadMessage(c.reader)
		if err != nil {
			return fmt.Errorf("failed to read reply: %w", err)
		}
		fmt.Printf("The client received the response from the main server using TCP over port %s.\n", localPortOf(c.conn))

		switch reply.Tag {
		case protocol.TagCheckAvailable:
			fmt.Println("The requested room is available.")
		case protocol.TagCheckUnavailable:
			fmt.Println("The requested room is not available.")
		case protocol.TagCheckNotFound:
			fmt.Println("Not able to find the room layout.")
		case protocol.TagReserveSucceed:
			fmt.Printf("Congratulation! The reservation for Room %s has been made.\n", roomCode)
		case protocol.TagReserveFail:
			fmt.Println("Sorry! The requested room is not available.")
		case protocol.TagReserveNotFound:
			fmt.Println("Oops! Not able to find the room.")
		case protocol.TagReserveDenied:
			fmt.Println("Permission denied: Guest cannot make a reservation.")
		default:
			c.logger.Warn().Str("tag", reply.Tag).Msg("unexpected reply")
		}

		fmt.Println("\n-----Start a new request-----")
	}
}

// prompt prints the prompt and reads one input line. ok is false when
// the input stream has ended.
func (c *Client) prompt(text string) (string, bool) {
	fmt.Print(text)
	if !c.stdin.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.stdin.Text()), true
}

func localPortOf(conn net.Conn) string {
	addr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%d", addr.Port)
}
