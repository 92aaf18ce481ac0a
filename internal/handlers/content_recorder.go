package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/services"
	"github.com/syncroom-dev/syncroom/pkg/logger"
)

// NewContentRecorder returns a router sink that persists content events to
// the session's conversation. The router has already made the single
// write-authorization decision by the time the sink runs, so a persisted
// message is always one that was broadcast.
func NewContentRecorder(engine *collab.Engine, conversations *services.ConversationService) collab.ContentSink {
	log := logger.WithModule("ws")

	return func(ctx context.Context, sessionID, userID string, envelope collab.Envelope) {
		if conversations == nil || !envelope.Type.RequiresWrite() {
			return
		}

		info, err := engine.SessionInfo(sessionID)
		if err != nil || info.ResourceID == "" {
			return
		}

		if _, err := conversations.AppendMessage(ctx, services.AppendMessageParams{
			ConversationID: info.ResourceID,
			SessionID:      sessionID,
			UserID:         userID,
			Kind:           string(envelope.Type),
			Payload:        envelope.Data,
		}); err != nil {
			log.Warn("message persistence failed",
				zap.String("session_id", sessionID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}
