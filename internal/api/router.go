package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/syncroom-dev/syncroom/internal/app"
	iauth "github.com/syncroom-dev/syncroom/internal/auth"
	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/handlers"
	"github.com/syncroom-dev/syncroom/internal/middleware"
	"github.com/syncroom-dev/syncroom/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, engine *collab.Engine, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if engine == nil {
		return nil, fmt.Errorf("collab engine must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	conversations, err := services.NewConversationService(db)
	if err != nil {
		return nil, err
	}
	store, err := services.NewSessionStoreService(db)
	if err != nil {
		return nil, err
	}

	eventRouter := collab.NewRouter(engine, nil,
		collab.WithContentSink(handlers.NewContentRecorder(engine, conversations)))

	userHandler := handlers.NewUserHandler(users, jwt)
	conversationHandler := handlers.NewConversationHandler(conversations)
	sessionHandler := handlers.NewSessionHandler(engine, store)
	streamHandler := handlers.NewStreamHandler(engine, eventRouter, jwt)

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	// Health endpoint (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/healthz", handlers.Health())
	}

	// Public identity routes
	r.POST("/api/v1/users", userHandler.Register)
	r.POST("/api/v1/auth/token", userHandler.Token)

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	v1 := r.Group("/api/v1")
	v1.Use(requireAuth)

	v1.GET("/auth/me", userHandler.Me)

	conv := v1.Group("/conversations")
	{
		conv.POST("", conversationHandler.Create)
		conv.GET("", conversationHandler.List)
		conv.GET("/:id", conversationHandler.Get)
		conv.POST("/:id/archive", conversationHandler.Archive)
		conv.GET("/:id/messages", conversationHandler.Messages)
	}

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", sessionHandler.Create)
		sessions.GET("", sessionHandler.ListActive)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.POST("/:id/participants", sessionHandler.AddParticipant)
		sessions.PUT("/:id/participants/:userID", sessionHandler.Grant)
		sessions.DELETE("/:id/participants/:userID", sessionHandler.RemoveParticipant)
		sessions.POST("/:id/close", sessionHandler.Close)
	}

	// Websocket gateway authenticates via token query parameter.
	r.GET("/ws", streamHandler.Stream)

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
