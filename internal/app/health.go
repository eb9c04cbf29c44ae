package app

import (
	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/locker-gateway/internal/health"
	"github.com/taoyao-code/locker-gateway/internal/locker"
	redisstorage "github.com/taoyao-code/locker-gateway/internal/storage/redis"
)

// NewReady 启动阶段就绪标记
func NewReady() *health.Readiness { return health.New() }

// NewHealthAggregator 以锁柜后端检查为基础创建聚合器
func NewHealthAggregator(drv locker.Driver) *health.Aggregator {
	return health.NewAggregator(health.NewLockerChecker(drv))
}

// RegisterHealthRoutes 注册健康检查路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddRedisChecker Redis 启用时加入检查
func AddRedisChecker(aggregator *health.Aggregator, client *redisstorage.Client) {
	if client != nil {
		aggregator.AddChecker(health.NewRedisChecker(client))
	}
}
