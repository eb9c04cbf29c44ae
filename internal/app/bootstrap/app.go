// Package bootstrap 网关启动编排
package bootstrap

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/locker-gateway/internal/api"
	"github.com/taoyao-code/locker-gateway/internal/app"
	"github.com/taoyao-code/locker-gateway/internal/cell"
	cfgpkg "github.com/taoyao-code/locker-gateway/internal/config"
	"github.com/taoyao-code/locker-gateway/internal/events"
	"github.com/taoyao-code/locker-gateway/internal/locker"
	"github.com/taoyao-code/locker-gateway/internal/logging"
)

// Run 等待 SIGINT/SIGTERM 后优雅退出
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, cfg, log, nil)
}

// RunContext 启动全部组件直到 ctx 结束
// ln 非 nil 时 HTTP 使用该监听器（测试使用）
func RunContext(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, ln net.Listener) error {
	instance := app.InstanceID()
	log = log.With(zap.String("instance", instance))
	log.Info("starting locker gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Bool("simulation", cfg.Simulation.Enabled))

	// ========== 阶段1: 基础组件 ==========
	appm, metricsHandler := app.NewMetrics()
	ready := app.NewReady()

	layout, err := app.NewLayout(cfg.Locker, log)
	if err != nil {
		log.Error("load cell layout failed", zap.Error(err))
		return err
	}
	registry := cell.NewRegistry(layout)

	// 生产者（轮询/模拟器/服务）→ 事件中心
	doorEvents := make(chan cell.DoorEvent, cfg.Events.BufferSize)
	hub := events.NewHub(
		events.WithBufferSize(cfg.Events.BufferSize),
		events.WithLogger(logging.Component(log, "events")),
		events.WithObserver(appm),
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go hub.Run(runCtx, doorEvents)
	log.Info("basic components initialized", zap.Int("cells", registry.Count()))

	// ========== 阶段2: 连接后端（串口打不开直接退出）==========
	drv := app.NewDriver(cfg, registry, doorEvents, appm, log)
	if err := drv.Connect(ctx); err != nil {
		log.Error("locker backend connect failed", zap.Error(err))
		hub.Close()
		return err
	}
	ready.SetBackendReady(true)
	info := drv.Info()
	log.Info("locker backend connected",
		zap.String("mode", info.Mode),
		zap.Uint8("address", info.Address),
		zap.String("firmware", info.FirmwareVersion))

	backendDone := make(chan error, 1)
	go func() { backendDone <- drv.Run(runCtx) }()

	svc := locker.NewService(drv, registry, doorEvents, app.AutoLock(cfg.Locker), logging.Component(log, "service"), appm)

	// ========== 阶段3: Redis 镜像（可选）==========
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		// 镜像是附属功能，不可用时继续提供本地事件流
		log.Warn("redis unavailable, mirror disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
		app.StartRedisMirror(runCtx, hub, redisClient, logging.Component(log, "redis-mirror"))
	}

	// ========== 阶段4: HTTP ==========
	healthAgg := app.NewHealthAggregator(drv)
	app.AddRedisChecker(healthAgg, redisClient)

	httpSrv := app.NewHTTPServer(cfg, metricsHandler, appm.HTTPRequests, ready.Ready, logging.Component(log, "http"))
	app.RegisterHealthRoutes(httpSrv.Engine(), healthAgg)
	handler := api.NewLockerHandler(svc, hub, cfg.Events.Heartbeat, logging.Component(log, "api"))
	api.RegisterLockerRoutes(httpSrv.Engine(), handler, log)

	httpErr := make(chan error, 1)
	go func() {
		if ln != nil {
			httpErr <- httpSrv.Serve(ln)
			return
		}
		httpErr <- httpSrv.Start()
	}()
	ready.SetHTTPReady(true)
	log.Info("all services ready", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段5: 等待退出 ==========
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, gracefully shutting down...")
	case err := <-backendDone:
		// 串口掉线：进程退出，由守护进程重启后重新连接
		if err != nil {
			log.Error("locker backend stopped", zap.Error(err))
			runErr = err
		}
	case err := <-httpErr:
		if err != nil {
			log.Error("http server error", zap.Error(err))
			runErr = err
		}
	}
	ready.SetHTTPReady(false)

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	// 事件流是长连接，先关闭事件中心让订阅者退出
	hub.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("http server stopped")

	cancel()
	if err := drv.Close(); err != nil {
		log.Warn("close locker backend", zap.Error(err))
	}
	log.Info("shutdown complete")
	return runErr
}
