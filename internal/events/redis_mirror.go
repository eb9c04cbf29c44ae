package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisChannel 默认发布频道
const DefaultRedisChannel = "locker:door-events"

// Publisher go-redis 发布能力（*redis.Client 实现）
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisMirror 将门事件镜像到 Redis 频道，供外部订单/通知系统订阅
// 自身是 Hub 的一个普通订阅者；被剔除后自动重新订阅
type RedisMirror struct {
	hub       *Hub
	pub       Publisher
	channel   string
	timeout   time.Duration
	retryWait time.Duration
	logger    *zap.Logger
}

// NewRedisMirror 创建镜像器
func NewRedisMirror(hub *Hub, pub Publisher, channel string, logger *zap.Logger) *RedisMirror {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMirror{
		hub:       hub,
		pub:       pub,
		channel:   channel,
		timeout:   2 * time.Second,
		retryWait: 500 * time.Millisecond,
		logger:    logger,
	}
}

// Run 阻塞直到 ctx 结束
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		sub := m.hub.Subscribe()
		m.consume(ctx, sub)
		m.hub.Unsubscribe(sub)

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retryWait):
			m.logger.Warn("redis mirror resubscribing", zap.String("channel", m.channel))
		}
	}
}

func (m *RedisMirror) consume(ctx context.Context, sub *Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				m.logger.Error("marshal door event failed", zap.Error(err))
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, m.timeout)
			err = m.pub.Publish(pctx, m.channel, b).Err()
			cancel()
			if err != nil {
				m.logger.Warn("redis publish failed",
					zap.String("channel", m.channel),
					zap.String("cell", ev.CellID),
					zap.Error(err))
			}
		}
	}
}
