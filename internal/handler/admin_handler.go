package handler

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/service"
	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// AdminHandler exposes maintenance operations: rollup rebuilds and first-run init
type AdminHandler struct {
	db          *sql.DB
	rollup      *service.RollupService
	importer    *service.ImportService
	presetsPath string
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *sql.DB, rollup *service.RollupService, importer *service.ImportService, presetsPath string) *AdminHandler {
	return &AdminHandler{
		db:          db,
		rollup:      rollup,
		importer:    importer,
		presetsPath: presetsPath,
	}
}

// RebuildDailyStats handles POST /api/v1/admin/daily-stats/rebuild
//
//	?date=YYYY-MM-DD                      one day, yesterday when empty
//	?start_date=YYYY-MM-DD&end_date=...   every day of the range
func (h *AdminHandler) RebuildDailyStats(c *gin.Context) {
	startDate, endDate := c.Query("start_date"), c.Query("end_date")
	if startDate != "" || endDate != "" {
		results, err := h.rollup.RebuildRange(c.Request.Context(), startDate, endDate)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, results)
		return
	}

	result, err := h.rollup.RebuildDailyStats(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// Backfill handles POST /api/v1/admin/daily-stats/backfill
func (h *AdminHandler) Backfill(c *gin.Context) {
	results, err := h.rollup.Backfill(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, results)
}

// Init handles POST /api/v1/init. It applies pending migrations and replays
// the preset vehicle file.
func (h *AdminHandler) Init(c *gin.Context) {
	ctx := c.Request.Context()

	if err := database.NewMigrationManager(h.db).RunMigrations(ctx); err != nil {
		log.Error().Err(err).Msg("Init migrations failed")
		response.InternalError(c, "Database initialization failed")
		return
	}

	result, err := h.importer.ImportFile(ctx, h.presetsPath)
	if err != nil {
		log.Error().Err(err).Str("path", h.presetsPath).Msg("Preset import failed")
		response.InternalError(c, "Failed to import preset vehicles")
		return
	}

	response.Success(c, gin.H{
		"message": "数据库初始化成功",
		"import":  result,
	})
}
