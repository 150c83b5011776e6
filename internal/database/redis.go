package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/banksim/internal/config"
	"github.com/ruralpay/banksim/internal/logging"
	"go.uber.org/zap"
)

// InitRedis returns nil, nil when Redis is disabled.
func InitRedis(ctx context.Context, cfg config.RedisConfig, logger *logging.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", cfg.Addr()))
	return rdb, nil
}
