package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/outbound"
	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"github.com/taoyao-code/locker-gateway/internal/serialport"
	"go.uber.org/zap"
)

// ErrLinkLost 串口读循环意外退出（设备拔出等）
var ErrLinkLost = errors.New("serial link lost")

// HardwareConfig 串口后端参数
type HardwareConfig struct {
	Serial        serialport.Config
	Address       byte
	MinCommandGap time.Duration
	QueryTimeout  time.Duration
	OpenTimeout   time.Duration
	Poller        PollerConfig
	// FirmwareFallback 设备未应答状态查询时显示的版本
	FirmwareFallback string
}

// PortOpener 打开串口传输层（默认 serialport.Open）
type PortOpener func(cfg serialport.Config, opts ...serialport.Option) (*serialport.Transport, error)

// HardwareDriver 真实 KZ004 后端：串口传输 + 关联器 + 门状态轮询
type HardwareDriver struct {
	cfg    HardwareConfig
	reg    *cell.Registry
	events chan<- cell.DoorEvent
	logger *zap.Logger

	obs           Observer
	cmdObs        outbound.Observer
	transportOpts []serialport.Option
	open          PortOpener

	mu        sync.RWMutex
	transport *serialport.Transport
	corr      *outbound.Correlator
	poller    *DoorPoller
	firmware  string
}

// HardwareOption 可选项
type HardwareOption func(*HardwareDriver)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) HardwareOption { return func(d *HardwareDriver) { d.logger = l } }

// WithObserver 设置轮询/事件指标回调
func WithObserver(o Observer) HardwareOption { return func(d *HardwareDriver) { d.obs = o } }

// WithCommandObserver 设置命令指标回调
func WithCommandObserver(o outbound.Observer) HardwareOption {
	return func(d *HardwareDriver) { d.cmdObs = o }
}

// WithTransportOptions 附加传输层选项
func WithTransportOptions(opts ...serialport.Option) HardwareOption {
	return func(d *HardwareDriver) { d.transportOpts = append(d.transportOpts, opts...) }
}

// WithPortOpener 替换串口打开方式（测试与诊断工具使用）
func WithPortOpener(fn PortOpener) HardwareOption { return func(d *HardwareDriver) { d.open = fn } }

// NewHardwareDriver 创建串口后端（尚未连接）
func NewHardwareDriver(cfg HardwareConfig, reg *cell.Registry, events chan<- cell.DoorEvent, opts ...HardwareOption) *HardwareDriver {
	if cfg.Address == 0 {
		cfg.Address = kz004.DefaultAddress
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 2 * time.Second
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}
	if cfg.Poller.Timeout <= 0 {
		cfg.Poller.Timeout = cfg.QueryTimeout
	}
	if cfg.FirmwareFallback == "" {
		cfg.FirmwareFallback = "unknown"
	}
	d := &HardwareDriver{
		cfg:    cfg,
		reg:    reg,
		events: events,
		logger: zap.NewNop(),
		open:   serialport.Open,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect 打开串口、建立关联器，查询固件版本并以当前门状态初始化注册表
// 串口打不开返回 *serialport.ConnectionError；初始查询失败只告警
func (d *HardwareDriver) Connect(ctx context.Context) error {
	topts := append([]serialport.Option{serialport.WithLogger(d.logger)}, d.transportOpts...)
	t, err := d.open(d.cfg.Serial, topts...)
	if err != nil {
		return err
	}

	copts := []outbound.Option{
		outbound.WithLogger(d.logger),
		outbound.WithMinGap(d.cfg.MinCommandGap),
	}
	if d.cmdObs != nil {
		copts = append(copts, outbound.WithObserver(d.cmdObs))
	}
	corr := outbound.New(t, d.cfg.Address, copts...)
	t.SetOnFrame(func(fr *kz004.Frame) { corr.HandleFrame(fr) })

	firmware := d.cfg.FirmwareFallback
	if fr, err := corr.SendCommand(ctx, kz004.CmdQueryStatus, nil, d.cfg.QueryTimeout); err != nil {
		d.logger.Warn("initial status query failed", zap.Error(err))
	} else if v := kz004.DecodeFirmware(fr.Payload); v != "" {
		firmware = v
	}

	// 启动时已打开的门只作为初始状态，不发出事件
	if fr, err := corr.SendCommand(ctx, kz004.CmdQueryDoorStatus, nil, d.cfg.QueryTimeout); err != nil {
		d.logger.Warn("initial door status query failed", zap.Error(err))
	} else if states, err := kz004.DecodeDoorStatus(fr.Payload, d.reg.Count()); err != nil {
		d.logger.Warn("initial door status decode failed", zap.Error(err))
	} else {
		d.reg.SeedDoorStates(states)
	}

	d.mu.Lock()
	d.transport = t
	d.corr = corr
	d.firmware = firmware
	d.poller = NewDoorPoller(corr, d.reg, d.events, d.cfg.Poller, d.logger, d.obs)
	d.mu.Unlock()

	d.logger.Info("locker connected",
		zap.String("port", d.cfg.Serial.Port),
		zap.Uint8("address", d.cfg.Address),
		zap.String("firmware", firmware))
	return nil
}

// Close 停止并释放串口（幂等）
func (d *HardwareDriver) Close() error {
	d.mu.Lock()
	t := d.transport
	d.transport = nil
	d.corr = nil
	d.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}

// Info 连接状态快照
func (d *HardwareDriver) Info() DeviceInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info := DeviceInfo{
		Mode:            ModeSerial,
		Address:         d.cfg.Address,
		FirmwareVersion: d.firmware,
	}
	info.Connected = d.transport != nil && !d.transport.Closed()
	if d.poller != nil {
		info.Degraded = d.poller.Degraded()
		info.ConsecutiveFailures = d.poller.Failures()
	}
	return info
}

// Correlator 当前关联器（未连接时为 nil）
func (d *HardwareDriver) Correlator() *outbound.Correlator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.corr
}

// Poller 当前轮询器（未连接时为 nil）
func (d *HardwareDriver) Poller() *DoorPoller {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.poller
}

func (d *HardwareDriver) sender() (*outbound.Correlator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.corr == nil || d.transport == nil || d.transport.Closed() {
		return nil, ErrNotConnected
	}
	return d.corr, nil
}

// OpenCell 发送开门命令，等待设备应答
func (d *HardwareDriver) OpenCell(ctx context.Context, number int) error {
	corr, err := d.sender()
	if err != nil {
		return err
	}
	_, err = corr.SendCommand(ctx, kz004.CmdOpenCell, []byte{byte(number)}, d.cfg.OpenTimeout)
	return err
}

// SetLED 设置格口指示灯
func (d *HardwareDriver) SetLED(ctx context.Context, number int, color LEDColor) error {
	corr, err := d.sender()
	if err != nil {
		return err
	}
	_, err = corr.SendCommand(ctx, kz004.CmdControlLED, []byte{byte(number), color.Code()}, d.cfg.QueryTimeout)
	return err
}

// ReadWeight 读取格口称重（克）
func (d *HardwareDriver) ReadWeight(ctx context.Context, number int) (int, error) {
	corr, err := d.sender()
	if err != nil {
		return 0, err
	}
	fr, err := corr.SendCommand(ctx, kz004.CmdQueryWeight, []byte{byte(number)}, d.cfg.QueryTimeout)
	if err != nil {
		return 0, err
	}
	w, err := kz004.DecodeWeight(fr.Payload)
	if err != nil {
		return 0, fmt.Errorf("decode weight of cell %d: %w", number, err)
	}
	return w, nil
}

// Run 运行门状态轮询，ctx 结束返回 nil，读循环意外退出返回 ErrLinkLost
func (d *HardwareDriver) Run(ctx context.Context) error {
	d.mu.RLock()
	t, poller := d.transport, d.poller
	d.mu.RUnlock()
	if t == nil || poller == nil {
		return ErrNotConnected
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go poller.Run(pctx)

	select {
	case <-ctx.Done():
		return nil
	case <-t.Done():
		if t.Closed() {
			return nil
		}
		d.logger.Error("serial read loop exited", zap.String("port", d.cfg.Serial.Port))
		_ = t.Close()
		return ErrLinkLost
	}
}
