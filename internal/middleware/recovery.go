package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
	"github.com/syncroom-dev/syncroom/pkg/logger"
	"github.com/syncroom-dev/syncroom/pkg/response"
)

// Recovery converts a handler panic into the standard 500 envelope. A panic
// in one request must never take down the websocket sessions served by the
// same process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("handler panic",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				response.Error(c, appErrors.ErrInternalServer)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the standard error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, appErrors.ErrNotFound)
}
