package collab

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routerFixture(t *testing.T) (*Router, *Engine, string, *mockHandle, *mockHandle) {
	t.Helper()
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice", "bob")

	aliceConn := &mockHandle{}
	bobConn := &mockHandle{}
	require.NoError(t, engine.Join(context.Background(), id, "alice", "Alice", aliceConn))
	require.NoError(t, engine.Join(context.Background(), id, "bob", "Bob", bobConn))

	return NewRouter(engine, nil), engine, id, aliceConn, bobConn
}

func TestRouterCursorUpdate(t *testing.T) {
	router, _, id, aliceConn, bobConn := routerFixture(t)

	payload, _ := json.Marshal(CursorState{Position: 42})
	err := router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventCursorUpdate,
		Data: payload,
	})
	require.NoError(t, err)

	events := aliceConn.received()
	last := events[len(events)-1]
	assert.Equal(t, EventCursorUpdate, last.Type)
	assert.Equal(t, "bob", last.UserID)

	// Never echoed to the sender.
	for _, event := range bobConn.received() {
		assert.NotEqual(t, EventCursorUpdate, event.Type)
	}
}

func TestRouterCursorBadPayload(t *testing.T) {
	router, _, id, _, _ := routerFixture(t)

	err := router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventCursorUpdate,
		Data: json.RawMessage(`{`),
	})
	assert.Error(t, err)
}

func TestRouterTyping(t *testing.T) {
	router, engine, id, aliceConn, _ := routerFixture(t)

	err := router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventTyping,
		Data: json.RawMessage(`{"is_typing":true}`),
	})
	require.NoError(t, err)

	events := aliceConn.received()
	last := events[len(events)-1]
	assert.Equal(t, EventTyping, last.Type)

	info, err := engine.SessionInfo(id)
	require.NoError(t, err)
	for _, record := range info.Presence {
		if record.UserID == "bob" {
			assert.True(t, record.IsTyping)
		}
	}
}

func TestRouterWriteEventFansOut(t *testing.T) {
	router, _, id, aliceConn, bobConn := routerFixture(t)

	err := router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventMessage,
		Data: json.RawMessage(`{"text":"hello"}`),
	})
	require.NoError(t, err)

	events := aliceConn.received()
	last := events[len(events)-1]
	assert.Equal(t, EventMessage, last.Type)
	assert.JSONEq(t, `{"text":"hello"}`, string(last.Data.(json.RawMessage)))

	for _, event := range bobConn.received() {
		assert.NotEqual(t, EventMessage, event.Type)
	}
}

func TestRouterDropsWriteFromReadOnlyParticipant(t *testing.T) {
	router, engine, id, aliceConn, bobConn := routerFixture(t)

	require.NoError(t, engine.Grant(context.Background(), id, "alice", "bob", CapabilityRead))

	aliceSeen := len(aliceConn.received())
	bobSeen := len(bobConn.received())

	for _, eventType := range []EventType{EventMessage, EventEdit, EventComment} {
		err := router.HandleEvent(context.Background(), id, "bob", Envelope{
			Type: eventType,
			Data: json.RawMessage(`{}`),
		})
		// The drop is silent: no error surfaces to the sender's connection.
		require.NoError(t, err)
	}

	assert.Len(t, aliceConn.received(), aliceSeen)
	assert.Len(t, bobConn.received(), bobSeen)

	// Read-only participants still move cursors.
	err := router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventCursorUpdate,
		Data: json.RawMessage(`{"position":3}`),
	})
	require.NoError(t, err)
	assert.Len(t, aliceConn.received(), aliceSeen+1)
}

func TestRouterContentSinkSeesOnlyAuthorizedWrites(t *testing.T) {
	engine := newTestEngine(t)
	id := createTestSession(t, engine, "alice", "bob")

	aliceConn := &mockHandle{}
	bobConn := &mockHandle{}
	require.NoError(t, engine.Join(context.Background(), id, "alice", "Alice", aliceConn))
	require.NoError(t, engine.Join(context.Background(), id, "bob", "Bob", bobConn))

	var recorded []Envelope
	router := NewRouter(engine, nil, WithContentSink(
		func(ctx context.Context, sessionID, userID string, envelope Envelope) {
			recorded = append(recorded, envelope)
		}))

	// An authorized message hits the sink exactly once, before the fan-out.
	require.NoError(t, router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventMessage,
		Data: json.RawMessage(`{"text":"hello"}`),
	}))
	require.Len(t, recorded, 1)
	assert.Equal(t, EventMessage, recorded[0].Type)

	// Presence traffic never reaches the sink.
	require.NoError(t, router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventCursorUpdate,
		Data: json.RawMessage(`{"position":7}`),
	}))
	assert.Len(t, recorded, 1)

	// Once bob is read-only, the single authorization decision covers both
	// the sink and the broadcast: neither sees the dropped event.
	require.NoError(t, engine.Grant(context.Background(), id, "alice", "bob", CapabilityRead))
	aliceSeen := len(aliceConn.received())

	require.NoError(t, router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventMessage,
		Data: json.RawMessage(`{"text":"denied"}`),
	}))
	assert.Len(t, recorded, 1)
	assert.Len(t, aliceConn.received(), aliceSeen)
}

func TestRouterIgnoresUnknownAndJoinTypes(t *testing.T) {
	router, _, id, aliceConn, _ := routerFixture(t)

	seen := len(aliceConn.received())

	require.NoError(t, router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventType("resize_terminal"),
		Data: json.RawMessage(`{}`),
	}))
	require.NoError(t, router.HandleEvent(context.Background(), id, "bob", Envelope{
		Type: EventJoin,
		Data: json.RawMessage(`{}`),
	}))

	assert.Len(t, aliceConn.received(), seen)
}

func TestRouterUnknownSession(t *testing.T) {
	router, _, _, _, _ := routerFixture(t)

	err := router.HandleEvent(context.Background(), "missing", "bob", Envelope{
		Type: EventMessage,
		Data: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
