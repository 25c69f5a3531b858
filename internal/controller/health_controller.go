package controller

import (
	"net/http"

	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// HealthController DB 和 Redis 只在对应后端启用时非空
type HealthController struct {
	Catalog *service.CatalogService
	DB      *gorm.DB
	Redis   *redis.Client
}

func NewHealthController(catalog *service.CatalogService, db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{Catalog: catalog, DB: db, Redis: rdb}
}

// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	components := gin.H{}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
			util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		components["database"] = "up"
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
			util.Error(ctx, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
		components["redis"] = "up"
	}

	counts, err := c.Catalog.Validate(ctx.Request.Context())
	if err != nil {
		components["catalog"] = err.Error()
	} else {
		components["catalog"] = "up"
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
		"catalog":    counts,
	})
}
