package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-status-backend/internal/auth"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), true
}

// RequireAPIKey guards device-facing routes. Without a configured API key
// every request passes.
func RequireAPIKey(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.APIKeyRequired() {
			c.Next()
			return
		}

		key, ok := bearer(c)
		if !ok || !a.VerifyAPIKey(key) {
			response.Unauthorized(c, "Invalid or missing API key")
			return
		}
		c.Next()
	}
}

// RequireAuth guards admin routes. The bearer credential must be a valid
// session token or the API key.
func RequireAuth(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearer(c)
		if !ok || !a.VerifyBearer(credential) {
			response.Unauthorized(c, "Unauthorized")
			return
		}
		c.Next()
	}
}
