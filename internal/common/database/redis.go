// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"merchant-onboarding/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects the status cache. Only a handful of small keys are
// written per application, so the pool stays small.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     8,
		MinIdleConns: 2,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}
	return rdb, nil
}
