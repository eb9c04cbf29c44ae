package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"go.uber.org/zap"
)

// CommandSender 关联器的发送能力（outbound.Correlator 实现）
type CommandSender interface {
	SendCommand(ctx context.Context, cmd byte, payload []byte, timeout time.Duration) (*kz004.Frame, error)
}

// PollerConfig 轮询参数
type PollerConfig struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
}

func (c *PollerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
}

// DoorPoller 周期查询门状态位图，与注册表比对后按位产生边沿事件
// 查询与 HTTP 命令共用同一个关联器，慢命令会推迟下一次轮询
type DoorPoller struct {
	sender CommandSender
	reg    *cell.Registry
	cfg    PollerConfig
	out    emitter
	logger *zap.Logger
	obs    Observer

	mu       sync.Mutex
	failures int
	degraded bool
}

// NewDoorPoller 创建轮询器
func NewDoorPoller(sender CommandSender, reg *cell.Registry, events chan<- cell.DoorEvent, cfg PollerConfig, logger *zap.Logger, obs Observer) *DoorPoller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoorPoller{
		sender: sender,
		reg:    reg,
		cfg:    cfg,
		out:    emitter{out: events, logger: logger, obs: obs},
		logger: logger,
		obs:    obs,
	}
}

// Run 按间隔轮询直到 ctx 结束；单次失败只记录，不中断循环
func (p *DoorPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("door poller started", zap.Duration("interval", p.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("door poller stopped")
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Debug("door poll failed", zap.Error(err))
			}
		}
	}
}

// PollOnce 执行一次查询并应用结果
// 应答释放关联器后才应用，期间完成的开门命令会使对应格口的位已过期，按代数跳过
func (p *DoorPoller) PollOnce(ctx context.Context) error {
	gens := p.reg.Generations()
	fr, err := p.sender.SendCommand(ctx, kz004.CmdQueryDoorStatus, nil, p.cfg.Timeout)
	if err == nil {
		_, err = p.apply(fr.Payload, gens)
	}
	p.record(err)
	return err
}

// Apply 解码门状态位图并与注册表比对，返回（并发出）全部跳变事件
func (p *DoorPoller) Apply(payload []byte) ([]cell.DoorEvent, error) {
	return p.apply(payload, nil)
}

func (p *DoorPoller) apply(payload []byte, gens []uint64) ([]cell.DoorEvent, error) {
	states, err := kz004.DecodeDoorStatus(payload, p.reg.Count())
	if err != nil {
		return nil, fmt.Errorf("decode door status: %w", err)
	}
	events := p.reg.ApplyDoorStatesSince(states, gens)
	for _, ev := range events {
		p.out.emit(ev)
	}
	return events, nil
}

// Degraded 连续失败达到阈值
func (p *DoorPoller) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// Failures 当前连续失败次数
func (p *DoorPoller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *DoorPoller) record(err error) {
	if p.obs != nil {
		p.obs.PollCompleted(err)
	}

	p.mu.Lock()
	was := p.degraded
	if err == nil {
		p.failures = 0
		p.degraded = false
	} else {
		p.failures++
		p.degraded = p.failures >= p.cfg.FailureThreshold
	}
	now, failures := p.degraded, p.failures
	p.mu.Unlock()

	if was == now {
		return
	}
	if p.obs != nil {
		p.obs.DegradedChanged(now)
	}
	if now {
		p.logger.Warn("door polling degraded",
			zap.Int("consecutive_failures", failures),
			zap.Error(err))
	} else {
		p.logger.Info("door polling recovered")
	}
}
