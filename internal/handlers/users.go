package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/syncroom-dev/syncroom/internal/auth"
	"github.com/syncroom-dev/syncroom/internal/services"
	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
	"github.com/syncroom-dev/syncroom/pkg/response"
)

// UserHandler exposes collaborator registration and token issuance.
type UserHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

// NewUserHandler constructs the handler.
func NewUserHandler(users *services.UserService, jwt *iauth.JWTService) *UserHandler {
	return &UserHandler{users: users, jwt: jwt}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
}

// POST /api/v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterParams{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
}

// POST /api/v1/auth/token
func (h *UserHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	user, err := h.users.GetByUsername(requestContext(c), req.Username)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": token, "user": user})
}

// GET /api/v1/auth/me
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
