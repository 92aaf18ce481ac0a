package collab

import (
	"context"
	"time"
)

// SessionRecord is the durable shape of a session handed to the store.
type SessionRecord struct {
	ID           string
	ResourceID   string
	Name         string
	CreatedBy    string
	CreatedAt    time.Time
	Participants []ParticipantRecord
}

// ParticipantRecord is the durable shape of one authorized participant.
type ParticipantRecord struct {
	UserID       string
	Capabilities []Capability
}

// SessionStore persists session metadata changes. The engine's in-memory
// state stays authoritative for live sessions; presence and connections are
// never persisted. Implementations must be safe for concurrent use.
type SessionStore interface {
	CreateSession(ctx context.Context, record SessionRecord) error
	SaveParticipants(ctx context.Context, sessionID string, participants []ParticipantRecord) error
	MarkClosed(ctx context.Context, sessionID string, closedAt time.Time) error
}

// ResourceChecker validates that the resource a session collaborates on
// exists. The conversation store provides the production implementation.
type ResourceChecker interface {
	ResourceExists(ctx context.Context, resourceID string) (bool, error)
}
