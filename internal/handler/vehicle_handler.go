package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/service"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// VehicleHandler handles HTTP requests for the vehicle registry
type VehicleHandler struct {
	vehicles *service.VehicleService
	status   *service.StatusService
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicles *service.VehicleService, status *service.StatusService) *VehicleHandler {
	return &VehicleHandler{
		vehicles: vehicles,
		status:   status,
	}
}

// vehicleRequest is the body of create and update calls; name and status are required
type vehicleRequest struct {
	VehicleID string   `json:"vehicle_id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	LocationX *float64 `json:"location_x"`
	LocationY *float64 `json:"location_y"`
}

func (r vehicleRequest) report() models.StatusReport {
	name := strings.TrimSpace(r.Name)
	return models.StatusReport{
		VehicleID: strings.TrimSpace(r.VehicleID),
		Name:      &name,
		Status:    r.Status,
		LocationX: r.LocationX,
		LocationY: r.LocationY,
	}
}

// GetAll handles GET /api/v1/vehicles
func (h *VehicleHandler) GetAll(c *gin.Context) {
	vehicles, err := h.vehicles.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, vehicles)
}

// GetByID handles GET /api/v1/vehicles/:id
func (h *VehicleHandler) GetByID(c *gin.Context) {
	vehicle, err := h.vehicles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, vehicle)
}

// Create handles POST /api/v1/vehicles
func (h *VehicleHandler) Create(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.VehicleID) == "" || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Status) == "" {
		response.BadRequest(c, "vehicle_id, name and status are required")
		return
	}

	vehicle, err := h.status.ReportStatus(c.Request.Context(), req.report())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, vehicle)
}

// Update handles PUT /api/v1/vehicles/:id
func (h *VehicleHandler) Update(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if req.VehicleID != "" && req.VehicleID != c.Param("id") {
		response.BadRequest(c, "vehicle_id does not match the path")
		return
	}
	req.VehicleID = c.Param("id")
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Status) == "" {
		response.BadRequest(c, "name and status are required")
		return
	}

	vehicle, err := h.status.ReportStatus(c.Request.Context(), req.report())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, vehicle)
}

// Delete handles DELETE /api/v1/vehicles/:id
func (h *VehicleHandler) Delete(c *gin.Context) {
	vehicle, err := h.vehicles.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":         "车辆删除成功",
		"deleted_vehicle": vehicle,
	})
}

// History handles GET /api/v1/vehicles/:id/history
func (h *VehicleHandler) History(c *gin.Context) {
	var filter models.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid hours parameter")
		return
	}

	entries, err := h.vehicles.History(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, entries)
}

// Nearby handles GET /api/v1/vehicles/nearby
func (h *VehicleHandler) Nearby(c *gin.Context) {
	var filter models.NearbyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	vehicles, err := h.vehicles.Nearby(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, vehicles)
}

// Extent handles GET /api/v1/vehicles/extent
func (h *VehicleHandler) Extent(c *gin.Context) {
	extent, err := h.vehicles.Extent(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, extent)
}
