package redis

import (
	"github.com/redis/go-redis/v9"

	"mailboard/internal/config"
)

// NewClient builds the Redis client backing the import gate.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
