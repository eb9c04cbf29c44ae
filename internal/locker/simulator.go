package locker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"go.uber.org/zap"
)

// SimulatorConfig 模拟后端参数
type SimulatorConfig struct {
	Address         byte
	FirmwareVersion string
	OccupancyRatio  float64
	// Seed 为 0 时按当前时间取随机种子
	Seed           int64
	ConnectDelay   time.Duration
	OpenDelay      time.Duration
	AutoCloseAfter time.Duration
}

// Simulator 无硬件时的后端：随机初始占用，开门后定时模拟关门
// 关门与真实轮询走同一条路径（注册表比对 + 事件通道）
type Simulator struct {
	cfg    SimulatorConfig
	reg    *cell.Registry
	out    emitter
	logger *zap.Logger

	connected atomic.Bool

	mu     sync.Mutex
	rng    *rand.Rand
	timers map[int]*time.Timer
}

// NewSimulator 创建模拟后端
func NewSimulator(cfg SimulatorConfig, reg *cell.Registry, events chan<- cell.DoorEvent, logger *zap.Logger, obs Observer) *Simulator {
	if cfg.Address == 0 {
		cfg.Address = kz004.DefaultAddress
	}
	if cfg.FirmwareVersion == "" {
		cfg.FirmwareVersion = "1.0.0-mock"
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:    cfg,
		reg:    reg,
		out:    emitter{out: events, logger: logger, obs: obs},
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		timers: make(map[int]*time.Timer),
	}
}

// Connect 模拟连接延迟并随机生成初始占用与重量
func (s *Simulator) Connect(ctx context.Context) error {
	if s.cfg.ConnectDelay > 0 {
		select {
		case <-time.After(s.cfg.ConnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	occupied := 0
	for _, c := range s.reg.List() {
		s.mu.Lock()
		roll := s.rng.Float64()
		weight := 500 + s.rng.Intn(5000)
		s.mu.Unlock()
		if roll >= s.cfg.OccupancyRatio {
			continue
		}
		if _, err := s.reg.MarkOccupied(c.ID); err != nil {
			continue
		}
		_, _ = s.reg.SetWeight(c.ID, weight)
		occupied++
	}
	s.connected.Store(true)
	s.logger.Info("simulated locker connected",
		zap.Int("cells", s.reg.Count()),
		zap.Int("occupied", occupied),
		zap.Int64("seed", s.cfg.Seed))
	return nil
}

// Close 取消全部待触发的自动关门
func (s *Simulator) Close() error {
	s.connected.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, t := range s.timers {
		t.Stop()
		delete(s.timers, n)
	}
	return nil
}

// Info 模拟后端状态
func (s *Simulator) Info() DeviceInfo {
	return DeviceInfo{
		Mode:            ModeSimulation,
		Connected:       s.connected.Load(),
		Address:         s.cfg.Address,
		FirmwareVersion: s.cfg.FirmwareVersion,
	}
}

// OpenCell 模拟开锁耗时；与真实命令一样，开始后不可取消
func (s *Simulator) OpenCell(ctx context.Context, number int) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("simulated open", zap.Int("cell_number", number))
	if s.cfg.OpenDelay > 0 {
		time.Sleep(s.cfg.OpenDelay)
	}
	return nil
}

// AfterOpen 门已标记为打开，安排自动关门
func (s *Simulator) AfterOpen(number int) {
	if s.cfg.AutoCloseAfter <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[number]; ok {
		t.Stop()
	}
	s.timers[number] = time.AfterFunc(s.cfg.AutoCloseAfter, func() {
		s.logger.Info("simulated auto close", zap.Int("cell_number", number))
		s.CloseDoor(number)
	})
}

// CloseDoor 模拟有人关上门；门本就关闭时不产生事件
func (s *Simulator) CloseDoor(number int) bool {
	s.mu.Lock()
	if t, ok := s.timers[number]; ok {
		t.Stop()
		delete(s.timers, number)
	}
	s.mu.Unlock()

	ev, changed := s.reg.ApplyDoor(number, false)
	if changed {
		s.out.emit(*ev)
	}
	return changed
}

// SetLED 仅记录日志
func (s *Simulator) SetLED(_ context.Context, number int, color LEDColor) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	s.logger.Info("simulated led", zap.Int("cell_number", number), zap.String("color", string(color)))
	return nil
}

// ReadWeight 有物品时返回随机重量，否则为 0
func (s *Simulator) ReadWeight(_ context.Context, number int) (int, error) {
	if !s.connected.Load() {
		return 0, ErrNotConnected
	}
	c, ok := s.reg.GetByNumber(number)
	if !ok {
		return 0, cell.ErrCellNotFound
	}
	if !c.HasItems {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return 500 + s.rng.Intn(5000), nil
}

// Run 阻塞到 ctx 结束后清理定时器
func (s *Simulator) Run(ctx context.Context) error {
	<-ctx.Done()
	return s.Close()
}
