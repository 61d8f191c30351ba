package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/internal/api/handler"
	"github.com/mathisdt/webuntis-fetcher/internal/api/middleware"
	"github.com/mathisdt/webuntis-fetcher/pkg/redis"
)

// 每个客户端每分钟访问 WebUntis 的接口次数上限
const (
	upstreamLimit  = 30
	upstreamWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时不限流
func Setup(h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	limited := r.Group("")
	limited.Use(middleware.RateLimit(rdb, upstreamLimit, upstreamWindow))
	{
		limited.GET("/timetable", h.Timetable.Page)
		limited.GET("/calendar/:section", h.Timetable.Calendar)
	}
	r.GET("/statistics/:section", h.Timetable.Statistics)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		v1.GET("/sections", h.Timetable.ListSections)
		v1.POST("/messages/forward", middleware.RateLimit(rdb, upstreamLimit, upstreamWindow), h.Message.Forward)
	}

	return r
}
