package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/syncroom-dev/syncroom/internal/services"
	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
	"github.com/syncroom-dev/syncroom/pkg/response"
)

// ConversationHandler exposes conversation CRUD and message history.
type ConversationHandler struct {
	conversations *services.ConversationService
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type createConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// POST /api/v1/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	conversation, err := h.conversations.Create(requestContext(c), services.CreateConversationParams{
		Title:     req.Title,
		CreatorID: userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, conversation)
}

// GET /api/v1/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	conversations, err := h.conversations.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversations)
}

// GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	conversation, err := h.conversations.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversation)
}

// POST /api/v1/conversations/:id/archive
func (h *ConversationHandler) Archive(c *gin.Context) {
	if err := h.conversations.Archive(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"archived": true})
}

// GET /api/v1/conversations/:id/messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("limit must be an integer"))
			return
		}
		limit = parsed
	}

	messages, err := h.conversations.Messages(requestContext(c), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, messages)
}
