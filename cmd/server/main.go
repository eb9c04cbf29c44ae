// @title KZ004 Locker Gateway API
// @version 1.0
// @description 智能锁柜串口网关
// @BasePath /
package main

import (
	"go.uber.org/zap"

	_ "github.com/taoyao-code/locker-gateway/docs"
	"github.com/taoyao-code/locker-gateway/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/locker-gateway/internal/config"
	"github.com/taoyao-code/locker-gateway/internal/logging"
)

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动并阻塞到收到退出信号
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Fatal("locker gateway exited", zap.Error(err))
	}
}
