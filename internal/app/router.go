package app

import (
	"time"

	"cfaquiz_backend/internal/config"
	"cfaquiz_backend/internal/middleware"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"
	"cfaquiz_backend/pkg/monitoring"
	"cfaquiz_backend/pkg/security"
	"cfaquiz_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
)

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 本地存储时由本服务提供导入图片
	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/assets", cfg.Storage.LocalPath)
	}

	if cfg.JWT.Secret == "" {
		logger.Log.Warn("JWT secret is empty, admin endpoints are open")
	}
	admin := middleware.AdminMiddleware(cfg.JWT.Secret)

	api := router.Group("/api")
	api.GET("/health", c.health.HealthCheck)

	a.registerCatalogRoutes(api, c)
	a.registerImportRoutes(api, c, admin, cfg)
	a.registerQuizRoutes(api, c)
	a.registerHistoryRoutes(api, c, admin)

	reports := api.Group("/reports")
	{
		reports.POST("", c.reports.Submit)
		reports.GET("", c.reports.List)
	}
}

func (a *App) registerCatalogRoutes(api *gin.RouterGroup, c *controllers) {
	catalog := api.Group("/catalog")
	{
		catalog.GET("/questions", c.catalog.ListQuestions)
		catalog.GET("/questions/:id", c.catalog.GetQuestion)
		catalog.GET("/formulas", c.catalog.ListFormulas)
		catalog.GET("/categories", c.catalog.Categories)
		catalog.GET("/export.csv", c.catalog.ExportQuestions)
		catalog.GET("/formulas.csv", c.catalog.ExportFormulas)
	}
}

func (a *App) registerImportRoutes(api *gin.RouterGroup, c *controllers, admin gin.HandlerFunc, cfg *config.Config) {
	imports := api.Group("/import")
	{
		imports.GET("/report", c.imports.Report)
		imports.POST("", admin, security.MaxBodySize(cfg.Import.MaxUploadMB<<20), c.imports.Upload)
		imports.DELETE("", admin, c.imports.Clear)
	}
}

func (a *App) registerQuizRoutes(api *gin.RouterGroup, c *controllers) {
	sessions := api.Group("/quiz/sessions")
	{
		sessions.POST("", c.quiz.Start)
		sessions.GET("/current", c.quiz.Current)
		sessions.GET("/current/summary", c.quiz.Summary)
		sessions.POST("/current/toggle", c.quiz.Toggle)
		sessions.POST("/current/validate", c.quiz.Validate)
		sessions.POST("/current/skip", c.quiz.Skip)
		sessions.POST("/current/next", c.quiz.Next)
		sessions.POST("/current/finish", c.quiz.Finish)
		sessions.DELETE("/current", c.quiz.Abandon)
	}
}

func (a *App) registerHistoryRoutes(api *gin.RouterGroup, c *controllers, admin gin.HandlerFunc) {
	history := api.Group("/history")
	{
		history.GET("", c.history.History)
		history.GET("/attempts", c.history.Attempts)
		history.GET("/attempts.csv", c.history.ExportAttempts)
		history.GET("/stats", c.history.Stats)
		history.DELETE("", admin, c.history.Clear)
	}
}
