package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/service"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// StatsHandler handles HTTP requests for statistics
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// GetVehicleStats handles GET /api/v1/vehicle/stats?vehicle_id=&start_date=&end_date=&type=
func (h *StatsHandler) GetVehicleStats(c *gin.Context) {
	var query models.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.statsService.Query(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}
