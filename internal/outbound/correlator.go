package outbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrCommandTimeout 在截止时间内未收到同命令码的响应
var ErrCommandTimeout = errors.New("command timeout")

// CommandTimeoutError 带命令码的超时错误，errors.Is(err, ErrCommandTimeout) 为真
type CommandTimeoutError struct {
	Command byte
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %s", kz004.CommandName(e.Command), e.Timeout)
}

func (e *CommandTimeoutError) Is(target error) bool { return target == ErrCommandTimeout }

// Link 下行写入能力（serialport.Transport 实现）
type Link interface {
	Write(frame []byte) error
}

// Observer 可选指标回调
type Observer interface {
	CommandDone(cmd byte, result string, d time.Duration)
	StrayFrame(cmd byte)
}

// pending 唯一在途命令
type pending struct {
	cmd    byte
	respC  chan *kz004.Frame
	sentAt time.Time
}

// Correlator 命令/响应关联器
// 半双工链路、协议无请求序号：同一时刻只允许一个命令在途，响应仅按命令码匹配
type Correlator struct {
	link    Link
	address byte
	logger  *zap.Logger
	obs     Observer

	// 单槽信号量：串行化所有调用方（HTTP 与轮询器共用，无优先级）
	slot chan struct{}
	// 帧间最小间隔
	gap *rate.Limiter

	mu      sync.Mutex
	pending *pending
}

// Option Correlator 可选项
type Option func(*Correlator)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option { return func(c *Correlator) { c.logger = l } }

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option { return func(c *Correlator) { c.obs = o } }

// WithMinGap 设置相邻两帧的最小发送间隔（0 表示不限制）
func WithMinGap(d time.Duration) Option {
	return func(c *Correlator) {
		if d > 0 {
			c.gap = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// New 创建关联器
func New(link Link, address byte, opts ...Option) *Correlator {
	c := &Correlator{
		link:    link,
		address: address,
		logger:  zap.NewNop(),
		slot:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address 设备地址
func (c *Correlator) Address() byte { return c.address }

// SendCommand 发送命令并等待同命令码的响应帧
// 已有命令在途时排队等待（串行，不拒绝）；ctx 只作用于排队阶段，
// 帧一旦写出，硬件动作无法撤回，调用一直持有链路直到响应或超时。
func (c *Correlator) SendCommand(ctx context.Context, cmd byte, payload []byte, timeout time.Duration) (*kz004.Frame, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	// 1. 获取链路
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.slot }()

	if c.gap != nil {
		if err := c.gap.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// 2. 注册在途槽位（替换旧槽位与注册为同一原子操作）
	p := &pending{cmd: cmd, respC: make(chan *kz004.Frame, 1), sentAt: time.Now()}
	c.mu.Lock()
	c.pending = p
	c.mu.Unlock()
	defer c.clear(p)

	// 3. 写出
	if err := c.link.Write(kz004.Build(c.address, cmd, payload)); err != nil {
		c.done(cmd, "transport_error", p.sentAt)
		c.logger.Warn("command write failed",
			zap.String("cmd", kz004.CommandName(cmd)),
			zap.Error(err))
		return nil, err
	}

	// 4. 等待响应；帧已写出后不再响应 ctx 取消，槽位只在响应或超时后释放
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case fr := <-p.respC:
		c.done(cmd, "ok", p.sentAt)
		return fr, nil
	case <-timer.C:
		c.done(cmd, "timeout", p.sentAt)
		c.logger.Warn("command timeout",
			zap.String("cmd", kz004.CommandName(cmd)),
			zap.Duration("timeout", timeout))
		return nil, &CommandTimeoutError{Command: cmd, Timeout: timeout}
	}
}

// HandleFrame 上行帧入口（由传输层读循环调用）
// 仅当存在同命令码的在途命令时投递，其余帧丢弃：避免已超时命令的迟到响应
// 被误配给新的同码命令。返回是否匹配成功。
func (c *Correlator) HandleFrame(fr *kz004.Frame) bool {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.cmd != fr.Command {
		c.mu.Unlock()
		if c.obs != nil {
			c.obs.StrayFrame(fr.Command)
		}
		c.logger.Debug("stray frame discarded", zap.Stringer("frame", fr))
		return false
	}
	c.pending = nil
	c.mu.Unlock()

	p.respC <- fr
	return true
}

// Busy 是否有命令在途
func (c *Correlator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Correlator) clear(p *pending) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

func (c *Correlator) done(cmd byte, result string, start time.Time) {
	if c.obs != nil {
		c.obs.CommandDone(cmd, result, time.Since(start))
	}
}
