package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/service"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// ReportHandler accepts status reports from scanned codes and devices
type ReportHandler struct {
	status *service.StatusService
}

// NewReportHandler creates a new report handler
func NewReportHandler(status *service.StatusService) *ReportHandler {
	return &ReportHandler{status: status}
}

// Scan handles GET /api/v1/vehicle?vehicle_id=&status=&name=&location_x=&location_y=
// This is the URL encoded in the vehicle QR codes.
func (h *ReportHandler) Scan(c *gin.Context) {
	report := models.StatusReport{
		VehicleID: c.Query("vehicle_id"),
		Status:    c.Query("status"),
	}
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		report.Name = &name
	}

	var err error
	if report.LocationX, err = optionalFloat(c, "location_x"); err != nil {
		response.BadRequest(c, "Invalid location_x parameter")
		return
	}
	if report.LocationY, err = optionalFloat(c, "location_y"); err != nil {
		response.BadRequest(c, "Invalid location_y parameter")
		return
	}

	h.record(c, report)
}

// Report handles POST /api/v1/vehicle with a JSON body
func (h *ReportHandler) Report(c *gin.Context) {
	var report models.StatusReport
	if err := c.ShouldBindJSON(&report); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	h.record(c, report)
}

func (h *ReportHandler) record(c *gin.Context, report models.StatusReport) {
	if strings.TrimSpace(report.VehicleID) == "" || strings.TrimSpace(report.Status) == "" {
		response.BadRequest(c, "Missing required parameters: vehicle_id and status")
		return
	}

	vehicle, err := h.status.ReportStatus(c.Request.Context(), report)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, vehicle)
}

// optionalFloat parses a query parameter; absent or empty means not provided
func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
