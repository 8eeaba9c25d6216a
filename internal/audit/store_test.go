package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellhop-project/bellhop/internal/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRecordAndQuery(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.RecordLogin(LoginRecord{
		Handle: 1, Username: "branden", Result: "LI_1", Member: true, At: now,
	}))
	require.NoError(t, store.RecordLogin(LoginRecord{
		Handle: 2, Username: "alice", Result: "LI_2", At: now.Add(time.Second),
	}))
	require.NoError(t, store.RecordRequest(RequestRecord{
		Handle: 1, Username: "branden", Op: "RE", RoomCode: "S101", Result: "RE_1", At: now,
	}))

	logins, err := store.RecentLogins(10)
	require.NoError(t, err)
	require.Len(t, logins, 2)
	// Newest first.
	assert.Equal(t, "alice", logins[0].Username)
	assert.Equal(t, "branden", logins[1].Username)
	assert.True(t, logins[1].Member)

	requests, err := store.RecentRequests(10)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "S101", requests[0].RoomCode)

	nLogins, nRequests, err := store.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, nLogins)
	assert.Equal(t, 1, nRequests)
}

func TestStoreRecentLimit(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordLogin(LoginRecord{
			Handle: uint64(i), Username: "alice", Result: "LI_2", At: time.Now(),
		}))
	}

	logins, err := store.RecentLogins(3)
	require.NoError(t, err)
	assert.Len(t, logins, 3)
}

func TestStorePrune(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().AddDate(0, 0, -40)
	recent := time.Now()

	require.NoError(t, store.RecordLogin(LoginRecord{Handle: 1, Username: "old", Result: "LI_2", At: old}))
	require.NoError(t, store.RecordLogin(LoginRecord{Handle: 2, Username: "new", Result: "LI_2", At: recent}))
	require.NoError(t, store.RecordRequest(RequestRecord{Handle: 1, Username: "old", Op: "CH", RoomCode: "S101", Result: "CH_1", At: old}))

	deleted, err := store.Prune(time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	logins, err := store.RecentLogins(10)
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "new", logins[0].Username)
}

func TestStoreSubscribe(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewEventBus()
	store.Subscribe(bus)

	ctx := context.Background()
	require.NoError(t, bus.EmitSync(ctx, events.Event{
		Type:   events.EventLoginResult,
		Source: "test",
		Payload: events.LoginResultPayload{
			Handle: 7, Username: "branden", Result: "LI_1", Member: true, At: time.Now(),
		},
	}))
	require.NoError(t, bus.EmitSync(ctx, events.Event{
		Type:   events.EventReserveResult,
		Source: "test",
		Payload: events.RequestResultPayload{
			Handle: 7, Username: "branden", Op: "RE", RoomCode: "S101", Result: "RE_1", At: time.Now(),
		},
	}))
	bus.Stop()

	logins, err := store.RecentLogins(10)
	require.NoError(t, err)
	assert.Len(t, logins, 1)

	requests, err := store.RecentRequests(10)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}
