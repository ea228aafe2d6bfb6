package handlers

import (
	"net/http"

	"VoiceBank/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.HealthCheck)
	r.GET("/system/status", h.SystemStatus)
	r.GET("/metrics", metrics.Handler())
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// SystemStatus 系统资源快照（CPU、内存、磁盘、goroutine 数）
func (h *Handlers) SystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.SnapshotSystem())
}
