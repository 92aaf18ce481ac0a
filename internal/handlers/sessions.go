package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/services"
	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
	"github.com/syncroom-dev/syncroom/pkg/response"
)

// SessionHandler exposes collaboration session lifecycle and membership over
// REST. Realtime traffic goes through the websocket gateway instead.
type SessionHandler struct {
	engine *collab.Engine
	store  *services.SessionStoreService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(engine *collab.Engine, store *services.SessionStoreService) *SessionHandler {
	return &SessionHandler{engine: engine, store: store}
}

type createSessionRequest struct {
	ConversationID string   `json:"conversation_id" binding:"required"`
	Name           string   `json:"name"`
	Participants   []string `json:"participants"`
}

// POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	sessionID, err := h.engine.CreateSession(requestContext(c), collab.CreateSessionParams{
		ResourceID:   req.ConversationID,
		CreatorID:    userID,
		Name:         req.Name,
		Participants: req.Participants,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	info, err := h.engine.SessionInfo(sessionID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, info)
}

// GET /api/v1/sessions
func (h *SessionHandler) ListActive(c *gin.Context) {
	sessions, err := h.store.ListActive(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	info, err := h.engine.SessionInfo(c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

type participantRequest struct {
	UserID       string   `json:"user_id" binding:"required"`
	Capabilities []string `json:"capabilities" binding:"omitempty,dive,capability"`
}

// POST /api/v1/sessions/:id/participants
func (h *SessionHandler) AddParticipant(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	caps, err := parseCapabilities(req.Capabilities)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.engine.AddParticipant(requestContext(c), c.Param("id"), actorID, req.UserID, caps...); err != nil {
		respondEngineError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"added": req.UserID})
}

// PUT /api/v1/sessions/:id/participants/:userID
func (h *SessionHandler) Grant(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req struct {
		Capabilities []string `json:"capabilities" binding:"required,dive,capability"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	caps, err := parseCapabilities(req.Capabilities)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.engine.Grant(requestContext(c), c.Param("id"), actorID, c.Param("userID"), caps...); err != nil {
		respondEngineError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"granted": c.Param("userID")})
}

// DELETE /api/v1/sessions/:id/participants/:userID
func (h *SessionHandler) RemoveParticipant(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.engine.RemoveParticipant(requestContext(c), c.Param("id"), actorID, c.Param("userID")); err != nil {
		respondEngineError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": c.Param("userID")})
}

// POST /api/v1/sessions/:id/close
func (h *SessionHandler) Close(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.engine.CloseSession(requestContext(c), c.Param("id"), actorID); err != nil {
		respondEngineError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

func parseCapabilities(raw []string) ([]collab.Capability, error) {
	caps := make([]collab.Capability, 0, len(raw))
	for _, value := range raw {
		capability, ok := collab.ParseCapability(value)
		if !ok {
			return nil, appErrors.NewBadRequest("unknown capability: " + value)
		}
		caps = append(caps, capability)
	}
	return caps, nil
}
