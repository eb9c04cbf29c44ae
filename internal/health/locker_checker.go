package health

import (
	"context"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/locker"
)

// DeviceInfoSource 提供后端连接信息
type DeviceInfoSource interface {
	Info() locker.DeviceInfo
}

// LockerChecker 锁柜后端检查：未连接为 unhealthy，门状态轮询降级为 degraded
type LockerChecker struct {
	src DeviceInfoSource
}

// NewLockerChecker 创建锁柜检查器
func NewLockerChecker(src DeviceInfoSource) *LockerChecker {
	return &LockerChecker{src: src}
}

func (c *LockerChecker) Name() string { return "locker" }

func (c *LockerChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	info := c.src.Info()
	details := map[string]any{
		"mode":     info.Mode,
		"address":  info.Address,
		"firmware": info.FirmwareVersion,
	}

	res := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
	switch {
	case !info.Connected:
		res.Status = StatusUnhealthy
		res.Message = "backend not connected"
	case info.Degraded:
		res.Status = StatusDegraded
		res.Message = "door status polling failing"
		details["consecutive_failures"] = info.ConsecutiveFailures
	}
	res.Latency = time.Since(start)
	return res
}
