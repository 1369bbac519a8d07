package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-status-backend/internal/auth"
	"github.com/jengzang/vehicle-status-backend/internal/config"
	"github.com/jengzang/vehicle-status-backend/internal/handler"
	"github.com/jengzang/vehicle-status-backend/internal/metrics"
	"github.com/jengzang/vehicle-status-backend/internal/middleware"
	"github.com/jengzang/vehicle-status-backend/internal/notify"
	"github.com/jengzang/vehicle-status-backend/internal/service"
)

// Dependencies 路由依赖
type Dependencies struct {
	Config    *config.Config
	DB        *sql.DB
	Hub       *notify.Hub
	Publisher notify.Publisher // 额外推送通道（如 Redis），可为空
	Auth      *auth.Authenticator
	Limiter   *middleware.RateLimiter
	Heartbeat time.Duration
	Now       func() time.Time
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	hub := deps.Hub
	if hub == nil {
		hub = notify.NewHub(0)
	}
	authenticator := deps.Auth
	if authenticator == nil {
		authenticator = auth.New(auth.Config{
			Username:  cfg.AdminUsername,
			Password:  cfg.AdminPassword,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.TokenTTL,
		})
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	}

	// 服务层
	statusService := service.NewStatusService(deps.DB,
		service.WithPublisher(notify.Multi{hub, deps.Publisher}),
		service.WithStrictStatus(cfg.StrictStatus),
		service.WithClock(now),
	)
	vehicleService := service.NewVehicleService(deps.DB, now)
	statsService := service.NewStatsService(deps.DB, now)
	rollupService := service.NewRollupService(deps.DB, now)
	importService := service.NewImportService(statusService, cfg.ImportWorkers)

	// 处理器
	vehicleHandler := handler.NewVehicleHandler(vehicleService, statusService)
	reportHandler := handler.NewReportHandler(statusService)
	statsHandler := handler.NewStatsHandler(statsService)
	eventsHandler := handler.NewEventsHandler(hub, deps.Heartbeat, now)
	authHandler := handler.NewAuthHandler(authenticator)
	adminHandler := handler.NewAdminHandler(deps.DB, rollupService, importService, cfg.PresetVehiclesPath)
	mapConfigHandler := handler.NewMapConfigHandler(cfg.MapConfigPath)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Vehicle Status Backend API is running",
		})
	})

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	requireAPIKey := middleware.RequireAPIKey(authenticator)
	requireAuth := middleware.RequireAuth(authenticator)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 车辆登记接口
		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", vehicleHandler.GetAll)
			vehicles.GET("/nearby", vehicleHandler.Nearby)
			vehicles.GET("/extent", vehicleHandler.Extent)
			vehicles.GET("/:id", vehicleHandler.GetByID)
			vehicles.GET("/:id/history", vehicleHandler.History)
			vehicles.POST("", requireAPIKey, vehicleHandler.Create)
			vehicles.PUT("/:id", requireAuth, vehicleHandler.Update)
			vehicles.DELETE("/:id", requireAuth, vehicleHandler.Delete)
			vehicles.POST("/login", authHandler.Login)
		}

		// 扫码上报与统计接口
		vehicle := api.Group("/vehicle")
		{
			vehicle.GET("", middleware.RateLimit(limiter), requireAPIKey, reportHandler.Scan)
			vehicle.POST("", middleware.RateLimit(limiter), requireAPIKey, reportHandler.Report)
			vehicle.GET("/stats", statsHandler.GetVehicleStats)
		}

		// 实时推送
		api.GET("/events", eventsHandler.Stream)

		// 地图配置
		api.GET("/map-config", mapConfigHandler.Get)

		// 初始化数据库并导入预置车辆
		api.POST("/init", requireAPIKey, adminHandler.Init)

		// 管理接口
		admin := api.Group("/admin", requireAuth)
		{
			admin.POST("/daily-stats/rebuild", adminHandler.RebuildDailyStats)
			admin.POST("/daily-stats/backfill", adminHandler.Backfill)
		}
	}

	return r
}
