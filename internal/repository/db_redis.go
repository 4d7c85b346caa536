// Package repository contains the repository layer for the Market Feed Service
package repository

import (
	"context"
	"time"

	"github.com/brokerx/marketfeed/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis connects to the optional Redis tick mirror.
// Returns (nil, nil) when no Redis address is configured.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	// Check Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := redisClient.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return redisClient, nil
}
