package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/middleware"
	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
	"github.com/syncroom-dev/syncroom/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func currentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxUserIDKey)
	if !ok {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

func currentDisplayName(c *gin.Context) string {
	v, ok := c.Get(middleware.CtxDisplayNameKey)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}

// respondEngineError maps engine sentinels onto the API error vocabulary.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, collab.ErrNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, collab.ErrUnauthorized):
		response.Error(c, appErrors.ErrForbidden)
	case errors.Is(err, collab.ErrSessionClosed):
		response.Error(c, appErrors.ErrSessionClosed)
	default:
		response.Error(c, err)
	}
}
