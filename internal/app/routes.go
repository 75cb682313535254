package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/middleware"
	"github.com/medvault/portal/internal/modules/auth/auth"
	"github.com/medvault/portal/internal/modules/storage/folder"
	"github.com/medvault/portal/internal/modules/summary"
	"github.com/medvault/portal/internal/pkg/response"
)

const apiPrefix = "/api/v1"

var appInfo = gin.H{
	"name":    "medvault-portal",
	"version": "1.0.0",
}

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth(a.issuer)

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := r.Group(apiPrefix)
	api.Use(middleware.Idempotence(a.redis, a.logger.Named("idempotence")))

	api.GET("", func(c *gin.Context) { c.JSON(http.StatusOK, appInfo) })
	api.GET("/health", a.health)

	auth.NewHandler(auth.NewService(a.db, a.issuer)).RegisterRoutes(api, authMW)
	folder.NewHandler(a.folders).RegisterRoutes(api, authMW)

	limit := a.cfg.Summary.GenerateRateLimit
	summaryLimit := middleware.RateLimit(a.redis, "summary", limit, time.Minute, a.logger.Named("ratelimit"))
	summary.NewHandler(a.summary, a.folders).RegisterRoutes(api, authMW, summaryLimit)
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	status := http.StatusOK
	if err := pingDatabase(ctx, a.db); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Raw().Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"status": http.StatusText(status),
		"checks": checks,
		"uptime": uptime(a.started),
	})
}
