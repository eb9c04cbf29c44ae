package locker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"go.uber.org/zap"
)

// 后端模式
const (
	ModeSerial     = "serial"
	ModeSimulation = "simulation"
)

var (
	// ErrNotConnected 后端尚未连接或链路已断开
	ErrNotConnected = errors.New("locker not connected")
	// ErrInvalidColor 未知的 LED 颜色
	ErrInvalidColor = errors.New("invalid led color")
)

// Driver 锁柜后端能力（真实串口 / 模拟器二选一，启动时按配置确定）
// 预约与释放是纯状态迁移，由 Service 直接作用于注册表，不经过后端
type Driver interface {
	Connect(ctx context.Context) error
	Close() error
	Info() DeviceInfo
	OpenCell(ctx context.Context, number int) error
	SetLED(ctx context.Context, number int, color LEDColor) error
	ReadWeight(ctx context.Context, number int) (int, error)
	// Run 运行后台任务（门状态轮询 / 模拟自动关门），阻塞到 ctx 结束或链路丢失
	Run(ctx context.Context) error
}

// openHook 开门成功并写入注册表之后的回调（模拟器据此安排自动关门）
type openHook interface {
	AfterOpen(number int)
}

// DeviceInfo 后端状态
type DeviceInfo struct {
	Mode                string `json:"mode"`
	Connected           bool   `json:"connected"`
	Address             byte   `json:"address"`
	FirmwareVersion     string `json:"firmwareVersion"`
	Degraded            bool   `json:"degraded"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// LEDColor 指示灯颜色
type LEDColor string

const (
	LEDOff   LEDColor = "off"
	LEDGreen LEDColor = "green"
	LEDRed   LEDColor = "red"
	LEDBlue  LEDColor = "blue"
	LEDBlink LEDColor = "blink"
)

var ledCodes = map[LEDColor]byte{
	LEDOff:   0x00,
	LEDGreen: 0x01,
	LEDRed:   0x02,
	LEDBlue:  0x03,
	LEDBlink: 0x04,
}

// ParseLEDColor 解析颜色（大小写不敏感）
func ParseLEDColor(s string) (LEDColor, error) {
	c := LEDColor(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ledCodes[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

// Code CONTROL_LED 负载中的颜色码
func (c LEDColor) Code() byte { return ledCodes[c] }

// Observer 可选指标回调
type Observer interface {
	PollCompleted(err error)
	DegradedChanged(degraded bool)
	DoorEventEmitted(open bool)
	DoorEventDropped()
}

// emitter 非阻塞地把门事件写入事件通道
// 通道满说明扇出侧已停止消费，此时丢弃事件，生产者（轮询器）不受影响
type emitter struct {
	out    chan<- cell.DoorEvent
	logger *zap.Logger
	obs    Observer
}

func (e emitter) emit(ev cell.DoorEvent) {
	if e.out == nil {
		return
	}
	select {
	case e.out <- ev:
		if e.obs != nil {
			e.obs.DoorEventEmitted(ev.DoorOpen)
		}
	default:
		if e.obs != nil {
			e.obs.DoorEventDropped()
		}
		e.logger.Warn("event channel full, door event dropped",
			zap.String("cell", ev.CellID),
			zap.Bool("door_open", ev.DoorOpen))
	}
}
