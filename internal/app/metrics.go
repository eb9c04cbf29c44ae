package app

import (
	"net/http"

	"github.com/taoyao-code/locker-gateway/internal/metrics"
)

// NewMetrics 初始化注册表与应用指标，返回指标与 /metrics 处理器
func NewMetrics() (*metrics.AppMetrics, http.Handler) {
	reg := metrics.NewRegistry()
	return metrics.NewAppMetrics(reg), metrics.Handler(reg)
}
