package collab

import (
	"encoding/json"
	"time"
)

// EventType identifies one kind of collaboration event. The set is closed;
// envelopes carrying an unknown type are ignored by the router.
type EventType string

const (
	// EventJoin announces a participant connecting. Inbound join envelopes
	// are handled at connection-open time, not through the router.
	EventJoin EventType = "join"
	// EventLeave announces a participant disconnecting.
	EventLeave EventType = "leave"
	// EventRoomState carries the full presence snapshot sent privately to a
	// newly joined connection.
	EventRoomState EventType = "room_state"
	// EventCursorUpdate carries a cursor/selection change.
	EventCursorUpdate EventType = "cursor_update"
	// EventTyping carries a typing indicator change.
	EventTyping EventType = "typing"
	// EventMessage carries a chat message.
	EventMessage EventType = "message"
	// EventEdit carries a raw document edit. Edits are relayed verbatim;
	// the engine guarantees delivery, not convergence.
	EventEdit EventType = "edit"
	// EventComment carries an inline comment.
	EventComment EventType = "comment"
	// EventParticipantAdded announces a participant being authorized.
	EventParticipantAdded EventType = "participant_added"
	// EventParticipantRemoved announces a participant being revoked.
	EventParticipantRemoved EventType = "participant_removed"
	// EventSessionClosed announces session termination.
	EventSessionClosed EventType = "session_closed"
	// EventError reports a failed client-requested operation back to the
	// originating connection only.
	EventError EventType = "error"
)

// RequiresWrite reports whether senders of this event type must hold the
// write capability.
func (t EventType) RequiresWrite() bool {
	switch t {
	case EventMessage, EventEdit, EventComment:
		return true
	default:
		return false
	}
}

// Event is the server-to-client broadcast payload.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the client-to-server message frame. Payload shape is fixed per
// event type and decoded by the router.
type Envelope struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CursorState describes a participant's cursor and optional selection.
type CursorState struct {
	Position  int        `json:"position"`
	Selection *Selection `json:"selection,omitempty"`
}

// Selection is a half-open [start, end) range within the shared document.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TypingState is the payload of typing events.
type TypingState struct {
	IsTyping bool `json:"is_typing"`
}
