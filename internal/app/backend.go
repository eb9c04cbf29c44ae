package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	cfgpkg "github.com/taoyao-code/locker-gateway/internal/config"
	"github.com/taoyao-code/locker-gateway/internal/locker"
	"github.com/taoyao-code/locker-gateway/internal/logging"
	"github.com/taoyao-code/locker-gateway/internal/metrics"
	"github.com/taoyao-code/locker-gateway/internal/serialport"
)

// NewLayout 有布局文件时按文件加载，否则按格口数生成标准布局
func NewLayout(cfg cfgpkg.LockerConfig, logger *zap.Logger) (cell.Layout, error) {
	if cfg.LayoutPath == "" {
		return cell.UniformLayout(cfg.CellCount), nil
	}
	layout, err := cell.LoadLayout(cfg.LayoutPath)
	if err != nil {
		return cell.Layout{}, err
	}
	logger.Info("cell layout loaded", zap.String("path", cfg.LayoutPath), zap.Int("cells", layout.Count()))
	return layout, nil
}

// NewDriver 按配置选择串口后端或模拟后端（尚未连接）
func NewDriver(cfg *cfgpkg.Config, reg *cell.Registry, events chan<- cell.DoorEvent, appm *metrics.AppMetrics, logger *zap.Logger) locker.Driver {
	if cfg.Simulation.Enabled {
		sc := cfg.Simulation
		return locker.NewSimulator(locker.SimulatorConfig{
			Address:        byte(cfg.Serial.Address),
			OccupancyRatio: sc.OccupancyRatio,
			Seed:           sc.Seed,
			ConnectDelay:   sc.ConnectDelay,
			OpenDelay:      sc.OpenDelay,
			AutoCloseAfter: sc.AutoCloseAfter,
		}, reg, events, logging.Component(logger, "simulator"), appm)
	}

	hc := locker.HardwareConfig{
		Serial: serialport.Config{
			Port:             cfg.Serial.Port,
			BaudRate:         cfg.Serial.BaudRate,
			InterByteTimeout: cfg.Serial.InterByteTimeout,
		},
		Address:       byte(cfg.Serial.Address),
		MinCommandGap: cfg.Serial.MinCommandGap,
		QueryTimeout:  cfg.Locker.QueryTimeout,
		OpenTimeout:   cfg.Locker.OpenTimeout,
		Poller: locker.PollerConfig{
			Interval:         cfg.Locker.PollInterval,
			Timeout:          cfg.Locker.QueryTimeout,
			FailureThreshold: cfg.Locker.FailureThreshold,
		},
		FirmwareFallback: cfg.Locker.FirmwareVersion,
	}
	return locker.NewHardwareDriver(hc, reg, events,
		locker.WithLogger(logging.Component(logger, "kz004")),
		locker.WithObserver(appm),
		locker.WithCommandObserver(appm),
		locker.WithTransportOptions(
			serialport.WithName(cfg.Serial.Port),
			serialport.WithMetricsCallbacks(appm.BytesReceived, appm.MalformedFrame),
		),
	)
}

// AutoLock 开门结果里提示的自动上锁秒数
func AutoLock(cfg cfgpkg.LockerConfig) time.Duration {
	if cfg.AutoLockSeconds <= 0 {
		return locker.DefaultAutoLock
	}
	return time.Duration(cfg.AutoLockSeconds) * time.Second
}
