package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/locker-gateway/internal/config"
	"github.com/taoyao-code/locker-gateway/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；指标关闭时不注册 /metrics
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, requests *prometheus.CounterVec, readyFn func() bool, logger *zap.Logger) *httpserver.Server {
	opts := httpserver.Options{
		MetricsPath:    cfg.Metrics.Path,
		RequestCounter: requests,
		ReadyFn:        readyFn,
		Logger:         logger,
	}
	if cfg.Metrics.Enable {
		opts.MetricsHandler = metricsHandler
	}
	return httpserver.New(cfg.HTTP, opts)
}
