package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterLockerRoutes 注册锁柜路由
func RegisterLockerRoutes(r *gin.Engine, h *LockerHandler, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}

	g := r.Group("/api/locker")

	g.GET("/status", h.Status)

	// 格口
	g.GET("/cells", h.ListCells)
	g.GET("/cells/available", h.ListAvailable)
	g.POST("/cells/open-available", h.OpenAvailable)
	g.GET("/cells/:id", h.GetCell)
	g.POST("/cells/:id/open", h.OpenCell)
	g.POST("/cells/:id/reserve", h.Reserve)
	g.POST("/cells/:id/release", h.Release)
	g.POST("/cells/:id/led", h.SetLED)
	g.GET("/cells/:id/weight", h.Weight)

	// 门事件流
	g.GET("/events", h.Events)
	g.GET("/events/ws", h.EventsWS)

	if logger != nil {
		logger.Info("locker routes registered", zap.Int("endpoints", 13))
	}
}
