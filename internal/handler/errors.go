package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/service"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// respondError maps a service error class onto the response envelope.
// Internal failures are logged and never echoed to the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.InternalError(c, "Internal server error")
	}
}
