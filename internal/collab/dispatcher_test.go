package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastExcludesSender(t *testing.T) {
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice", "bob", "carol")

	conns := map[string]*mockHandle{}
	for _, user := range []string{"alice", "bob", "carol"} {
		conn := &mockHandle{}
		conns[user] = conn
		require.NoError(t, engine.Join(context.Background(), id, user, user, conn))
	}

	before := map[string]int{}
	for user, conn := range conns {
		before[user] = len(conn.received())
	}

	delivered, err := engine.Broadcast(id, Event{Type: EventMessage, UserID: "bob"}, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	assert.Len(t, conns["bob"].received(), before["bob"])
	assert.Len(t, conns["alice"].received(), before["alice"]+1)
	assert.Len(t, conns["carol"].received(), before["carol"]+1)
}

func TestBroadcastUnknownSession(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Broadcast("missing", Event{Type: EventMessage}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBroadcastClosedSession(t *testing.T) {
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice")
	require.NoError(t, engine.CloseSession(context.Background(), id, "alice"))

	_, err := engine.Broadcast(id, Event{Type: EventMessage}, "")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestBroadcastStampsTimestamp(t *testing.T) {
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice", "bob")

	conn := &mockHandle{}
	require.NoError(t, engine.Join(context.Background(), id, "alice", "Alice", conn))
	require.NoError(t, engine.Join(context.Background(), id, "bob", "Bob", &mockHandle{}))

	_, err := engine.Broadcast(id, Event{Type: EventMessage, UserID: "bob"}, "bob")
	require.NoError(t, err)

	events := conn.received()
	last := events[len(events)-1]
	assert.False(t, last.Timestamp.IsZero())
	assert.Equal(t, id, last.SessionID)
}

func TestFanOutPrunesDeadHandle(t *testing.T) {
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice", "bob", "carol")

	aliceConn := &mockHandle{}
	bobConn := &mockHandle{}
	carolConn := &mockHandle{}
	require.NoError(t, engine.Join(context.Background(), id, "alice", "Alice", aliceConn))
	require.NoError(t, engine.Join(context.Background(), id, "bob", "Bob", bobConn))
	require.NoError(t, engine.Join(context.Background(), id, "carol", "Carol", carolConn))

	bobConn.failSends()

	delivered, err := engine.Broadcast(id, Event{Type: EventMessage, UserID: "alice"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	// Bob's dead connection was evicted; the healthy one was untouched.
	assert.True(t, bobConn.isClosed())
	assert.False(t, carolConn.isClosed())

	info, err := engine.SessionInfo(id)
	require.NoError(t, err)
	assert.Len(t, info.Presence, 2)
	for _, p := range info.Participants {
		if p.UserID == "bob" {
			// Still authorized, just disconnected.
			assert.False(t, p.Connected)
			assert.True(t, NewCapabilitySet(p.Capabilities...).Has(CapabilityRead))
		}
	}

	// A pruned participant can rejoin.
	require.NoError(t, engine.Join(context.Background(), id, "bob", "Bob", &mockHandle{}))
}

func TestPruneLeavesFreshHandleAlone(t *testing.T) {
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice", "bob")

	stale := &mockHandle{sendErr: errSendFailed}
	fresh := &mockHandle{}
	require.NoError(t, engine.Join(context.Background(), id, "bob", "Bob", fresh))

	session, err := engine.lookup(id)
	require.NoError(t, err)

	// Simulates a fan-out racing a rejoin: the snapshot still holds the stale
	// handle while the registry already holds the fresh one.
	engine.pruneConnection(session, "bob", stale)

	assert.True(t, stale.isClosed())
	assert.False(t, fresh.isClosed())

	info, err := engine.SessionInfo(id)
	require.NoError(t, err)
	require.Len(t, info.Presence, 1)
	assert.Equal(t, "bob", info.Presence[0].UserID)
}
