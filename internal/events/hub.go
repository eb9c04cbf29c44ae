package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/taoyao-code/locker-gateway/internal/cell"
	"go.uber.org/zap"
)

// DefaultBufferSize 每个订阅者的默认缓冲
const DefaultBufferSize = 32

// Subscriber 订阅句柄
// C 被关闭表示订阅已结束（主动退订、消费过慢被剔除或 Hub 关闭）
type Subscriber struct {
	ID string
	C  <-chan cell.DoorEvent

	ch   chan cell.DoorEvent
	once sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Observer 可选指标回调
type Observer interface {
	SubscribersChanged(n int)
	EventBroadcast()
	SubscriberDropped()
}

// Hub 门事件扇出
// 生产者只有一个（事件通道），Broadcast 永不阻塞：缓冲满的订阅者直接剔除
type Hub struct {
	bufSize int
	logger  *zap.Logger
	obs     Observer

	mu     sync.Mutex
	subs   map[string]*Subscriber
	closed bool
}

// Option Hub 可选项
type Option func(*Hub)

// WithBufferSize 设置订阅者缓冲
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option { return func(h *Hub) { h.logger = l } }

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option { return func(h *Hub) { h.obs = o } }

// NewHub 创建 Hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		bufSize: DefaultBufferSize,
		logger:  zap.NewNop(),
		subs:    make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe 新建订阅；Hub 已关闭时返回一个已关闭的订阅
func (h *Hub) Subscribe() *Subscriber {
	ch := make(chan cell.DoorEvent, h.bufSize)
	s := &Subscriber{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.close()
		return s
	}
	h.subs[s.ID] = s
	h.changedLocked()
	h.logger.Debug("subscriber added", zap.String("subscriber", s.ID), zap.Int("total", len(h.subs)))
	return s
}

// Unsubscribe 退订（幂等）
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.ID]; ok {
		delete(h.subs, s.ID)
		h.changedLocked()
	}
	s.close()
}

// Broadcast 投递事件；不能立即写入缓冲的订阅者被剔除并关闭
func (h *Hub) Broadcast(ev cell.DoorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	dropped := 0
	for id, s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			delete(h.subs, id)
			s.close()
			dropped++
			if h.obs != nil {
				h.obs.SubscriberDropped()
			}
			h.logger.Warn("slow subscriber dropped", zap.String("subscriber", id))
		}
	}
	if h.obs != nil {
		h.obs.EventBroadcast()
	}
	if dropped > 0 {
		h.changedLocked()
	}
}

// Run 消费事件通道直到 ctx 结束或通道关闭
func (h *Hub) Run(ctx context.Context, in <-chan cell.DoorEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			h.logger.Info("door event",
				zap.String("cell", ev.CellID),
				zap.Bool("door_open", ev.DoorOpen))
			h.Broadcast(ev)
		}
	}
}

// Count 当前订阅者数量
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close 关闭全部订阅，之后的 Subscribe 立即得到已关闭订阅
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.close()
	}
	h.changedLocked()
}

func (h *Hub) changedLocked() {
	if h.obs != nil {
		h.obs.SubscribersChanged(len(h.subs))
	}
}
