package models

import (
	"gorm.io/datatypes"
)

// Conversation is the shared resource a collaboration session works on.
type Conversation struct {
	BaseModel

	Title     string `json:"title"`
	CreatedBy string `gorm:"type:uuid;index" json:"created_by"`
	Archived  bool   `gorm:"default:false" json:"archived"`

	Messages []ConversationMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// ConversationMessage is one durable message, edit, or comment. Live fan-out
// happens in memory; rows here exist so late joiners can fetch history.
type ConversationMessage struct {
	BaseModel

	ConversationID string `gorm:"type:uuid;index;not null" json:"conversation_id"`
	SessionID      string `gorm:"type:uuid;index" json:"session_id"`
	UserID         string `gorm:"type:uuid;index;not null" json:"user_id"`

	// Kind mirrors the wire event type (message, edit, comment).
	Kind    string         `gorm:"index;not null" json:"kind"`
	Payload datatypes.JSON `json:"payload"`
}
