package locker

import (
	"context"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"go.uber.org/zap"
)

// DefaultAutoLock 开门结果中返回给调用方的超时时间
const DefaultAutoLock = 60 * time.Second

// Status 锁柜总体状态
type Status struct {
	Connected           bool        `json:"connected"`
	Address             byte        `json:"address"`
	FirmwareVersion     string      `json:"firmwareVersion"`
	TotalCells          int         `json:"totalCells"`
	Mode                string      `json:"mode"`
	Degraded            bool        `json:"degraded"`
	ConsecutiveFailures int         `json:"consecutiveFailures,omitempty"`
	Cells               []cell.Cell `json:"cells"`
}

// OpenResult 开门结果
type OpenResult struct {
	Success    bool   `json:"success"`
	CellID     string `json:"cellId"`
	CellNumber int    `json:"cellNumber"`
	// Timeout 秒；超时后门仍未关闭时状态保持 open，不自动回退
	Timeout int `json:"timeout"`
}

// Service 锁柜业务入口：HTTP 层只依赖它
type Service struct {
	drv      Driver
	reg      *cell.Registry
	out      emitter
	autoLock time.Duration
	logger   *zap.Logger
}

// NewService 创建服务；events 与后端共用同一个事件通道
func NewService(drv Driver, reg *cell.Registry, events chan<- cell.DoorEvent, autoLock time.Duration, logger *zap.Logger, obs Observer) *Service {
	if autoLock <= 0 {
		autoLock = DefaultAutoLock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		drv:      drv,
		reg:      reg,
		out:      emitter{out: events, logger: logger, obs: obs},
		autoLock: autoLock,
		logger:   logger,
	}
}

// Registry 格口注册表
func (s *Service) Registry() *cell.Registry { return s.reg }

// Driver 当前后端
func (s *Service) Driver() Driver { return s.drv }

// Status 连接信息 + 全部格口
func (s *Service) Status() Status {
	info := s.drv.Info()
	cells := s.reg.List()
	return Status{
		Connected:           info.Connected,
		Address:             info.Address,
		FirmwareVersion:     info.FirmwareVersion,
		TotalCells:          len(cells),
		Mode:                info.Mode,
		Degraded:            info.Degraded,
		ConsecutiveFailures: info.ConsecutiveFailures,
		Cells:               cells,
	}
}

// Cells 全部格口
func (s *Service) Cells() []cell.Cell { return s.reg.List() }

// Cell 单个格口
func (s *Service) Cell(id string) (cell.Cell, error) {
	c, ok := s.reg.Get(id)
	if !ok {
		return cell.Cell{}, cell.ErrCellNotFound
	}
	return c, nil
}

// Available 可用格口，size 为空不限
func (s *Service) Available(size cell.Size) []cell.Cell {
	return s.reg.FindAvailable(size)
}

// OpenCell 开门：后端确认后才修改注册表，失败时状态不变
// ctx 只作用于排队阶段：命令写出后客户端断开，应答仍会到达并更新注册表
func (s *Service) OpenCell(ctx context.Context, id, reason string) (OpenResult, error) {
	c, ok := s.reg.Get(id)
	if !ok {
		return OpenResult{}, cell.ErrCellNotFound
	}
	if !s.drv.Info().Connected {
		return OpenResult{}, ErrNotConnected
	}

	if err := s.drv.OpenCell(ctx, c.Number); err != nil {
		s.logger.Warn("open cell failed",
			zap.String("cell", c.ID),
			zap.String("reason", reason),
			zap.Error(err))
		return OpenResult{}, err
	}

	_, ev, err := s.reg.MarkOpened(c.ID)
	if err != nil {
		return OpenResult{}, err
	}
	if ev != nil {
		s.out.emit(*ev)
	}
	if h, ok := s.drv.(openHook); ok {
		h.AfterOpen(c.Number)
	}

	s.logger.Info("cell opened",
		zap.String("cell", c.ID),
		zap.Int("cell_number", c.Number),
		zap.String("reason", reason))
	return OpenResult{
		Success:    true,
		CellID:     c.ID,
		CellNumber: c.Number,
		Timeout:    int(s.autoLock / time.Second),
	}, nil
}

// OpenAvailable 按尺寸挑选并打开一个可用格口
// 请求尺寸无空闲时依次尝试更大的尺寸，全部无空闲返回 ErrNoAvailableCells
func (s *Service) OpenAvailable(ctx context.Context, size cell.Size, reason string) (OpenResult, error) {
	if size == "" {
		size = cell.SizeM
	}
	for _, sz := range append([]cell.Size{size}, size.Larger()...) {
		candidates := s.reg.FindAvailable(sz)
		if len(candidates) == 0 {
			continue
		}
		return s.OpenCell(ctx, candidates[0].ID, reason)
	}
	return OpenResult{}, cell.ErrNoAvailableCells
}

// Reserve 预约格口
func (s *Service) Reserve(id, orderID string) (cell.Cell, error) {
	c, err := s.reg.Reserve(id, orderID)
	if err == nil {
		s.logger.Info("cell reserved", zap.String("cell", c.ID), zap.String("order_id", orderID))
	}
	return c, err
}

// Release 释放格口（幂等）
func (s *Service) Release(id string) (cell.Cell, error) {
	c, err := s.reg.Release(id)
	if err == nil {
		s.logger.Info("cell released", zap.String("cell", c.ID))
	}
	return c, err
}

// SetLED 设置指示灯
func (s *Service) SetLED(ctx context.Context, id, color string) error {
	col, err := ParseLEDColor(color)
	if err != nil {
		return err
	}
	c, ok := s.reg.Get(id)
	if !ok {
		return cell.ErrCellNotFound
	}
	return s.drv.SetLED(ctx, c.Number, col)
}

// Weight 读取并记录格口重量
func (s *Service) Weight(ctx context.Context, id string) (int, error) {
	c, ok := s.reg.Get(id)
	if !ok {
		return 0, cell.ErrCellNotFound
	}
	w, err := s.drv.ReadWeight(ctx, c.Number)
	if err != nil {
		return 0, err
	}
	_, _ = s.reg.SetWeight(c.ID, w)
	return w, nil
}
