package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/syncroom-dev/syncroom/internal/auth"
	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/database"
	"github.com/syncroom-dev/syncroom/internal/middleware"
	"github.com/syncroom-dev/syncroom/internal/services"
)

type testStack struct {
	router        *gin.Engine
	db            *gorm.DB
	engine        *collab.Engine
	jwt           *iauth.JWTService
	users         *services.UserService
	conversations *services.ConversationService
	store         *services.SessionStoreService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	conversations, err := services.NewConversationService(db)
	require.NoError(t, err)
	store, err := services.NewSessionStoreService(db)
	require.NoError(t, err)

	engine := collab.NewEngine(
		collab.WithSessionStore(store),
		collab.WithResourceChecker(conversations),
	)
	eventRouter := collab.NewRouter(engine, nil,
		collab.WithContentSink(NewContentRecorder(engine, conversations)))

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "syncroom-test"})
	require.NoError(t, err)

	userHandler := NewUserHandler(users, jwt)
	conversationHandler := NewConversationHandler(conversations)
	sessionHandler := NewSessionHandler(engine, store)
	streamHandler := NewStreamHandler(engine, eventRouter, jwt)

	r := gin.New()
	r.POST("/api/v1/users", userHandler.Register)
	r.POST("/api/v1/auth/token", userHandler.Token)

	authed := r.Group("/api/v1", middleware.Auth(jwt))
	authed.GET("/auth/me", userHandler.Me)
	authed.POST("/conversations", conversationHandler.Create)
	authed.GET("/conversations", conversationHandler.List)
	authed.GET("/conversations/:id", conversationHandler.Get)
	authed.POST("/conversations/:id/archive", conversationHandler.Archive)
	authed.GET("/conversations/:id/messages", conversationHandler.Messages)
	authed.POST("/sessions", sessionHandler.Create)
	authed.GET("/sessions", sessionHandler.ListActive)
	authed.GET("/sessions/:id", sessionHandler.Get)
	authed.POST("/sessions/:id/participants", sessionHandler.AddParticipant)
	authed.PUT("/sessions/:id/participants/:userID", sessionHandler.Grant)
	authed.DELETE("/sessions/:id/participants/:userID", sessionHandler.RemoveParticipant)
	authed.POST("/sessions/:id/close", sessionHandler.Close)

	r.GET("/ws", streamHandler.Stream)

	return &testStack{
		router:        r,
		db:            db,
		engine:        engine,
		jwt:           jwt,
		users:         users,
		conversations: conversations,
		store:         store,
	}
}

func (s *testStack) tokenFor(t *testing.T, username, displayName string) string {
	t.Helper()

	user, err := s.users.Register(nil, services.RegisterParams{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: displayName,
	})
	require.NoError(t, err)

	token, err := s.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	})
	require.NoError(t, err)
	return token
}

func (s *testStack) userIDFor(t *testing.T, username string) string {
	t.Helper()
	user, err := s.users.GetByUsername(nil, username)
	require.NoError(t, err)
	return user.ID
}

func (s *testStack) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func appendParams(conversationID, userID, payload string) services.AppendMessageParams {
	return services.AppendMessageParams{
		ConversationID: conversationID,
		UserID:         userID,
		Kind:           "message",
		Payload:        []byte(payload),
	}
}

func (s *testStack) createConversation(t *testing.T, token, title string) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/conversations", token, gin.H{"title": title})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var conversation struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &conversation)
	return conversation.ID
}
