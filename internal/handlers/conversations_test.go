package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom-dev/syncroom/internal/models"
)

func TestConversationEndpoints(t *testing.T) {
	stack := newTestStack(t)
	token := stack.tokenFor(t, "alice", "Alice")

	conversationID := stack.createConversation(t, token, "design review")

	w := stack.do(t, http.MethodGet, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Conversation
	decodeData(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "design review", list[0].Title)

	w = stack.do(t, http.MethodGet, "/api/v1/conversations/"+conversationID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodPost, "/api/v1/conversations/"+conversationID+"/archive", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodGet, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = nil
	decodeData(t, w, &list)
	assert.Empty(t, list)

	w = stack.do(t, http.MethodGet, "/api/v1/conversations/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationCreateValidationErrors(t *testing.T) {
	stack := newTestStack(t)
	token := stack.tokenFor(t, "alice", "Alice")

	w := stack.do(t, http.MethodPost, "/api/v1/conversations", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationMessagesEndpoint(t *testing.T) {
	stack := newTestStack(t)
	token := stack.tokenFor(t, "alice", "Alice")
	aliceID := stack.userIDFor(t, "alice")

	conversationID := stack.createConversation(t, token, "notes")

	_, err := stack.conversations.AppendMessage(nil, appendParams(conversationID, aliceID, `{"text":"hello"}`))
	require.NoError(t, err)

	w := stack.do(t, http.MethodGet, "/api/v1/conversations/"+conversationID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var messages []models.ConversationMessage
	decodeData(t, w, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "message", messages[0].Kind)

	w = stack.do(t, http.MethodGet, "/api/v1/conversations/"+conversationID+"/messages?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
