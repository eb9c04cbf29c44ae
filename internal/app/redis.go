package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/locker-gateway/internal/config"
	"github.com/taoyao-code/locker-gateway/internal/events"
	redisstorage "github.com/taoyao-code/locker-gateway/internal/storage/redis"
)

// NewRedisClient 未启用时返回 (nil, nil)
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, door events stay in-process")
		return nil, nil
	}

	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.String("channel", cfg.Channel),
		zap.Int("pool_size", cfg.PoolSize))
	return client, nil
}

// StartRedisMirror 把门事件镜像发布到 Redis 频道，直到 ctx 结束
func StartRedisMirror(ctx context.Context, hub *events.Hub, client *redisstorage.Client, logger *zap.Logger) {
	if client == nil {
		return
	}
	m := events.NewRedisMirror(hub, client, client.Channel(), logger)
	go m.Run(ctx)
}
