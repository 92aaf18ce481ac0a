package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"

	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/models"
)

// SessionStoreService is the gorm-backed implementation of the engine's
// durable session store. It records session metadata and the authorized
// participant set; live state never touches the database.
type SessionStoreService struct {
	db *gorm.DB
}

var _ collab.SessionStore = (*SessionStoreService)(nil)

// NewSessionStoreService constructs the store.
func NewSessionStoreService(db *gorm.DB) (*SessionStoreService, error) {
	if db == nil {
		return nil, errors.New("session store: db is required")
	}
	return &SessionStoreService{db: db}, nil
}

// CreateSession persists the initial session record and participant set in
// one transaction.
func (s *SessionStoreService) CreateSession(ctx context.Context, record collab.SessionRecord) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := models.CollabSession{
			BaseModel:      models.BaseModel{ID: record.ID, CreatedAt: record.CreatedAt},
			ConversationID: record.ResourceID,
			Name:           record.Name,
			CreatedBy:      record.CreatedBy,
			Active:         true,
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("session store: create session: %w", err)
		}
		return replaceParticipants(tx, record.ID, record.Participants)
	})
}

// SaveParticipants replaces the stored participant set for the session.
func (s *SessionStoreService) SaveParticipants(ctx context.Context, sessionID string, participants []collab.ParticipantRecord) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceParticipants(tx, sessionID, participants)
	})
}

// MarkClosed flags the session inactive and stamps the close time.
func (s *SessionStoreService) MarkClosed(ctx context.Context, sessionID string, closedAt time.Time) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.CollabSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{"active": false, "closed_at": closedAt})
	if result.Error != nil {
		return fmt.Errorf("session store: mark closed: %w", result.Error)
	}
	return nil
}

// Get fetches one stored session with its participant rows.
func (s *SessionStoreService) Get(ctx context.Context, sessionID string) (*models.CollabSession, error) {
	ctx = ensureContext(ctx)

	var session models.CollabSession
	err := s.db.WithContext(ctx).
		Preload("Participants").
		First(&session, "id = ?", strings.TrimSpace(sessionID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	return &session, nil
}

// ListActive returns sessions that have not been closed, newest first.
func (s *SessionStoreService) ListActive(ctx context.Context) ([]models.CollabSession, error) {
	ctx = ensureContext(ctx)

	var sessions []models.CollabSession
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session store: list active: %w", err)
	}
	return sessions, nil
}

// PurgeClosedBefore removes closed sessions (and their participant rows)
// whose close time predates the cutoff. Returns the number of sessions purged.
func (s *SessionStoreService) PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.CollabSession{}).
			Where("active = ? AND closed_at < ?", false, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("session_id IN ?", ids).
			Delete(&models.CollabSessionParticipant{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&models.CollabSession{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("session store: purge closed: %w", err)
	}
	return purged, nil
}

func replaceParticipants(tx *gorm.DB, sessionID string, participants []collab.ParticipantRecord) error {
	if err := tx.Where("session_id = ?", sessionID).
		Delete(&models.CollabSessionParticipant{}).Error; err != nil {
		return fmt.Errorf("session store: clear participants: %w", err)
	}

	for _, participant := range participants {
		caps, err := json.Marshal(participant.Capabilities)
		if err != nil {
			return fmt.Errorf("session store: encode capabilities: %w", err)
		}
		row := models.CollabSessionParticipant{
			SessionID:    sessionID,
			UserID:       participant.UserID,
			Capabilities: datatypes.JSON(caps),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("session store: save participant: %w", err)
		}
	}
	return nil
}
