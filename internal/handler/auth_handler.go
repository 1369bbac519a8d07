package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/auth"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// AuthHandler handles admin login
type AuthHandler struct {
	auth *auth.Authenticator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(a *auth.Authenticator) *AuthHandler {
	return &AuthHandler{auth: a}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/vehicles/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		response.BadRequest(c, "username and password are required")
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("Failed login attempt")
		response.Unauthorized(c, "Invalid username or password")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"username":   req.Username,
		"expires_at": expires.Unix(),
	})
}
