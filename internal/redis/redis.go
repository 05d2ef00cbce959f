package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/proxygrid/proxygrid/internal/config"
)

var (
	client *redis.Client
	once   sync.Once
)

// Initialize sets up the Redis client and tests the connection
func Initialize(cfg *config.Config) error {
	var initErr error
	once.Do(func() {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       0,
		})

		// Test connection
		ctx := context.Background()
		if err := client.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("failed to connect to Redis: %w", err)
		}
	})
	return initErr
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}
