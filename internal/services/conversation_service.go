package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"

	"github.com/syncroom-dev/syncroom/internal/models"
)

const (
	maxConversationTitleLength = 200
	maxMessagePayloadBytes     = 64 << 10 // 64 KiB

	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
)

// ConversationService manages the shared resources sessions collaborate on
// and the durable message history written beneath the live fan-out path.
type ConversationService struct {
	db *gorm.DB
}

// NewConversationService constructs a conversation service.
func NewConversationService(db *gorm.DB) (*ConversationService, error) {
	if db == nil {
		return nil, errors.New("conversation service: db is required")
	}
	return &ConversationService{db: db}, nil
}

// CreateConversationParams carries the payload for a new conversation.
type CreateConversationParams struct {
	Title     string
	CreatorID string
}

// Create persists a new conversation.
func (s *ConversationService) Create(ctx context.Context, params CreateConversationParams) (*models.Conversation, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, appErrors.NewBadRequest("conversation title is required")
	}
	if utf8.RuneCountInString(title) > maxConversationTitleLength {
		return nil, appErrors.NewBadRequest("conversation title exceeds maximum length")
	}
	creatorID := strings.TrimSpace(params.CreatorID)
	if creatorID == "" {
		return nil, errors.New("conversation service: creator id is required")
	}

	conversation := models.Conversation{
		Title:     title,
		CreatedBy: creatorID,
	}
	if err := s.db.WithContext(ctx).Create(&conversation).Error; err != nil {
		return nil, fmt.Errorf("conversation service: create: %w", err)
	}
	return &conversation, nil
}

// Get fetches a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*models.Conversation, error) {
	ctx = ensureContext(ctx)

	var conversation models.Conversation
	err := s.db.WithContext(ctx).First(&conversation, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation service: get: %w", err)
	}
	return &conversation, nil
}

// List returns conversations newest first, excluding archived ones.
func (s *ConversationService) List(ctx context.Context) ([]models.Conversation, error) {
	ctx = ensureContext(ctx)

	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("archived = ?", false).
		Order("created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("conversation service: list: %w", err)
	}
	return conversations, nil
}

// Archive hides a conversation from listings without deleting its history.
func (s *ConversationService) Archive(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", strings.TrimSpace(id)).
		Update("archived", true)
	if result.Error != nil {
		return fmt.Errorf("conversation service: archive: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// ResourceExists reports whether a non-archived conversation with the given
// ID exists. Session creation validates its resource through this.
func (s *ConversationService) ResourceExists(ctx context.Context, resourceID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND archived = ?", strings.TrimSpace(resourceID), false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("conversation service: resource check: %w", err)
	}
	return count > 0, nil
}

// AppendMessageParams carries one durable message, edit, or comment.
type AppendMessageParams struct {
	ConversationID string
	SessionID      string
	UserID         string
	Kind           string
	Payload        []byte
}

// AppendMessage persists a content event before it is fanned out, so late
// joiners and reconnecting clients can replay history.
func (s *ConversationService) AppendMessage(ctx context.Context, params AppendMessageParams) (*models.ConversationMessage, error) {
	ctx = ensureContext(ctx)

	conversationID := strings.TrimSpace(params.ConversationID)
	if conversationID == "" {
		return nil, errors.New("conversation service: conversation id is required")
	}
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		return nil, errors.New("conversation service: user id is required")
	}
	kind := strings.TrimSpace(params.Kind)
	if kind == "" {
		return nil, errors.New("conversation service: message kind is required")
	}
	if len(params.Payload) > maxMessagePayloadBytes {
		return nil, appErrors.NewBadRequest("message payload exceeds maximum size")
	}

	message := models.ConversationMessage{
		ConversationID: conversationID,
		SessionID:      strings.TrimSpace(params.SessionID),
		UserID:         userID,
		Kind:           kind,
		Payload:        datatypes.JSON(params.Payload),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("conversation service: append message: %w", err)
	}
	return &message, nil
}

// Messages returns the most recent messages for a conversation, oldest first.
// A non-positive limit selects the default page size.
func (s *ConversationService) Messages(ctx context.Context, conversationID string, limit int) ([]models.ConversationMessage, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}

	var messages []models.ConversationMessage
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", strings.TrimSpace(conversationID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("conversation service: messages: %w", err)
	}

	// Reverse into chronological order for replay.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
