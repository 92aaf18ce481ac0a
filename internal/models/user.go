package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User identifies a collaborator. Identity is intentionally thin: the token
// service resolves users by ID and display name, nothing more.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	LastSeenAt *time.Time `json:"last_seen_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
