package models

import (
	"time"

	"gorm.io/datatypes"
)

// CollabSession is the durable record of a collaboration session. Presence,
// cursors, and connections are never persisted; this row carries only the
// metadata needed to list and audit sessions across restarts.
type CollabSession struct {
	BaseModel

	ConversationID string `gorm:"type:uuid;index;not null" json:"conversation_id"`
	Name           string `json:"name"`
	CreatedBy      string `gorm:"type:uuid;index;not null" json:"created_by"`

	Active   bool       `gorm:"default:true;index" json:"active"`
	ClosedAt *time.Time `json:"closed_at"`

	Participants []CollabSessionParticipant `gorm:"foreignKey:SessionID" json:"participants,omitempty"`
}

// CollabSessionParticipant records one authorized participant and their
// capability set, stored as a JSON array of capability names.
type CollabSessionParticipant struct {
	BaseModel

	SessionID    string         `gorm:"type:uuid;index:idx_session_user,unique;not null" json:"session_id"`
	UserID       string         `gorm:"type:uuid;index:idx_session_user,unique;not null" json:"user_id"`
	Capabilities datatypes.JSON `json:"capabilities"`
}
