package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"

	"github.com/syncroom-dev/syncroom/internal/models"
)

// UserService manages collaborator identities.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a user service.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// RegisterParams carries the payload for a new collaborator.
type RegisterParams struct {
	Username    string
	Email       string
	DisplayName string
}

// Register creates a collaborator record.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, appErrors.NewBadRequest("username is required")
	}
	email := strings.TrimSpace(params.Email)
	if email == "" {
		return nil, appErrors.NewBadRequest("email is required")
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user := models.User{
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("user service: register: %w", err)
	}
	return &user, nil
}

// Get fetches a collaborator by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get: %w", err)
	}
	return &user, nil
}

// GetByUsername fetches a collaborator by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", strings.TrimSpace(username)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get by username: %w", err)
	}
	return &user, nil
}
