package gateway

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/inventory"
	"github.com/bellhop-project/bellhop/internal/protocol"
)

// freeUDPPort reserves an ephemeral UDP port and releases it for the
// component under test to claim.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

type testDeployment struct {
	gw   *Gateway
	node *inventory.Node
}

// startTestDeployment runs a gateway plus one partition node holding a
// single unit of S101.
func startTestDeployment(t *testing.T) *testDeployment {
	t.Helper()

	memberFile := filepath.Join(t.TempDir(), "member.txt")
	// "branden, Hello123!" in obscured form.
	require.NoError(t, os.WriteFile(memberFile, []byte("eudqghq, Khoor456!\n"), 0644))

	nodePort := freeUDPPort(t)
	cfg := config.DefaultConfig()
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Gateway.ClientPort = 0
	cfg.Gateway.BackendPort = 0
	cfg.Gateway.MemberFile = memberFile
	cfg.Gateway.ReplyTimeoutSec = 2
	cfg.Gateway.Partitions = []config.PartitionData{
		{Name: "S", Host: "127.0.0.1", UDPPort: nodePort},
	}

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	gw, err := New(cfg, bus)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		gw.Stop()
	})
	go gw.Start(ctx)

	require.Eventually(t, func() bool {
		return gw.ClientAddr() != nil && gw.BackendAddr() != nil
	}, 2*time.Second, 10*time.Millisecond, "gateway did not bind")

	table := inventory.NewTable()
	table.Load(map[string]int{"S101": 1, "S102": 0})
	node, err := inventory.NewNode("S", table, gw.BackendAddr().String())
	require.NoError(t, err)
	require.NoError(t, node.Bind(ctx, net.JoinHostPort("127.0.0.1", strconv.Itoa(nodePort))))
	require.NoError(t, node.Announce())
	go node.Serve(ctx)

	return &testDeployment{gw: gw, node: node}
}

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (d *testDeployment) dial(t *testing.T) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", d.gw.ClientAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) roundTrip(t *testing.T, tag string, fields ...string) string {
	t.Helper()
	require.NoError(t, protocol.WriteMessage(c.conn, protocol.Message{Tag: tag, Fields: fields}))
	reply, err := protocol.ReadMessage(c.reader)
	require.NoError(t, err)
	return reply.Tag
}

func (c *testClient) login(t *testing.T, username, password string) string {
	t.Helper()
	creds := protocol.FormatCredentials(protocol.Obscure(username), protocol.Obscure(password))
	return c.roundTrip(t, protocol.TagLoginRequest, creds)
}

func TestGatewayEndToEnd(t *testing.T) {
	d := startTestDeployment(t)

	// The node's announcement populates the observational view.
	require.Eventually(t, func() bool {
		count, ok := d.gw.View().Get("S101")
		return ok && count == 1
	}, 2*time.Second, 10*time.Millisecond, "inventory announcement not merged")

	// Guest session: may look but not book.
	guest := d.dial(t)
	assert.Equal(t, protocol.TagLoginGuest, guest.login(t, "alice", ""))
	assert.Equal(t, protocol.TagCheckAvailable, guest.roundTrip(t, protocol.TagCheckRequest, "S101"))
	assert.Equal(t, protocol.TagReserveDenied, guest.roundTrip(t, protocol.TagReserveRequest, "S101"))

	// Member session takes the last unit.
	member := d.dial(t)
	assert.Equal(t, protocol.TagLoginMember, member.login(t, "branden", "Hello123!"))
	assert.Equal(t, protocol.TagReserveSucceed, member.roundTrip(t, protocol.TagReserveRequest, "S101"))
	assert.Equal(t, protocol.TagReserveFail, member.roundTrip(t, protocol.TagReserveRequest, "S101"))

	// Room codes outside any partition are answered locally.
	assert.Equal(t, protocol.TagCheckNotFound, member.roundTrip(t, protocol.TagCheckRequest, "D201"))
	assert.Equal(t, protocol.TagReserveNotFound, member.roundTrip(t, protocol.TagReserveRequest, "D201"))

	// Known partition, unknown room.
	assert.Equal(t, protocol.TagCheckNotFound, member.roundTrip(t, protocol.TagCheckRequest, "S999"))

	// The guest sees the room exhausted by the member's reservation.
	assert.Equal(t, protocol.TagCheckUnavailable, guest.roundTrip(t, protocol.TagCheckRequest, "S101"))

	// The reserve-succeeded reply updated the view.
	require.Eventually(t, func() bool {
		count, ok := d.gw.View().Get("S101")
		return ok && count == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, d.gw.Pending().Outstanding())
}

func TestGatewayConcurrentReservations(t *testing.T) {
	d := startTestDeployment(t)

	// Many members race for the single unit of S101; the node's
	// sequential loop guarantees exactly one wins.
	const clients = 8
	results := make(chan string, clients)
	for i := 0; i < clients; i++ {
		c := d.dial(t)
		require.Equal(t, protocol.TagLoginMember, c.login(t, "branden", "Hello123!"))
		go func(c *testClient) {
			results <- c.roundTrip(t, protocol.TagReserveRequest, "S101")
		}(c)
	}

	succeeded, failed := 0, 0
	for i := 0; i < clients; i++ {
		switch <-results {
		case protocol.TagReserveSucceed:
			succeeded++
		case protocol.TagReserveFail:
			failed++
		default:
			t.Fatal("unexpected reservation result")
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one reservation may win")
	assert.Equal(t, clients-1, failed)

	count, _ := d.node.Table().Count("S101")
	assert.Equal(t, 0, count)
}

func TestGatewaySessionTracking(t *testing.T) {
	d := startTestDeployment(t)

	c := d.dial(t)
	require.Eventually(t, func() bool {
		return d.gw.Sessions().Count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	c.login(t, "alice", "")
	sessions := d.gw.Sessions().All()
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice", sessions[0].Name)
	assert.False(t, sessions[0].Member)

	c.conn.Close()
	require.Eventually(t, func() bool {
		return d.gw.Sessions().Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
