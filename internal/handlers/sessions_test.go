package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom-dev/syncroom/internal/collab"
)

func TestSessionCreateAndGet(t *testing.T) {
	stack := newTestStack(t)
	aliceToken := stack.tokenFor(t, "alice", "Alice")
	bobToken := stack.tokenFor(t, "bob", "Bob")
	bobID := stack.userIDFor(t, "bob")

	conversationID := stack.createConversation(t, aliceToken, "design review")

	w := stack.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, gin.H{
		"conversation_id": conversationID,
		"name":            "review",
		"participants":    []string{bobID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info collab.SessionInfo
	decodeData(t, w, &info)
	assert.NotEmpty(t, info.ID)
	assert.True(t, info.Active)
	assert.Len(t, info.Participants, 2)

	w = stack.do(t, http.MethodGet, "/api/v1/sessions/"+info.ID, bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodGet, "/api/v1/sessions/missing", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionCreateUnknownConversation(t *testing.T) {
	stack := newTestStack(t)
	token := stack.tokenFor(t, "alice", "Alice")

	w := stack.do(t, http.MethodPost, "/api/v1/sessions", token, gin.H{
		"conversation_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionMembershipEndpoints(t *testing.T) {
	stack := newTestStack(t)
	aliceToken := stack.tokenFor(t, "alice", "Alice")
	bobToken := stack.tokenFor(t, "bob", "Bob")
	bobID := stack.userIDFor(t, "bob")

	conversationID := stack.createConversation(t, aliceToken, "notes")

	w := stack.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, gin.H{
		"conversation_id": conversationID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var info collab.SessionInfo
	decodeData(t, w, &info)

	// Add bob with default capabilities.
	w = stack.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/participants", aliceToken, gin.H{
		"user_id": bobID,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Non-admin mutations are forbidden.
	w = stack.do(t, http.MethodDelete, "/api/v1/sessions/"+info.ID+"/participants/"+bobID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Downgrade bob to read-only.
	w = stack.do(t, http.MethodPut, "/api/v1/sessions/"+info.ID+"/participants/"+bobID, aliceToken, gin.H{
		"capabilities": []string{"read"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	caps, err := stack.engine.Capabilities(info.ID, bobID)
	require.NoError(t, err)
	assert.False(t, caps.Has(collab.CapabilityWrite))

	// Unknown capability is a 400.
	w = stack.do(t, http.MethodPut, "/api/v1/sessions/"+info.ID+"/participants/"+bobID, aliceToken, gin.H{
		"capabilities": []string{"owner"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Remove bob entirely.
	w = stack.do(t, http.MethodDelete, "/api/v1/sessions/"+info.ID+"/participants/"+bobID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	caps, err = stack.engine.Capabilities(info.ID, bobID)
	require.NoError(t, err)
	assert.Empty(t, caps)
}

func TestSessionCloseEndpoint(t *testing.T) {
	stack := newTestStack(t)
	aliceToken := stack.tokenFor(t, "alice", "Alice")

	conversationID := stack.createConversation(t, aliceToken, "notes")

	w := stack.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, gin.H{
		"conversation_id": conversationID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var info collab.SessionInfo
	decodeData(t, w, &info)

	w = stack.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/close", aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Closing again reports the terminal state.
	w = stack.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/close", aliceToken, nil)
	assert.Equal(t, http.StatusGone, w.Code)

	// The stored record was flagged inactive.
	stored, err := stack.store.Get(nil, info.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestSessionEndpointsRequireAuth(t *testing.T) {
	stack := newTestStack(t)

	w := stack.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"conversation_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = stack.do(t, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
