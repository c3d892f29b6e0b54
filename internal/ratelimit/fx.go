package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/storyloom/storyloom/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when no Redis address is configured; the
// limiter then fails open.
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Warn("redis not configured, request rate limiting disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("rate.limit",
	fx.Provide(
		NewRedisClient,
		NewTokenBucket,
		NewRequestLimiter,
	),
)
