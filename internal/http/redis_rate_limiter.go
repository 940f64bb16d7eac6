package httpx

import (
	"context"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "composedeck:ratelimit:"

type redisRateLimiter struct {
	client  *redis.Client
	logger  *slog.Logger
	timeout time.Duration
}

// NewRedisRateLimiter constructs a Redis backed rate limiter shared by every
// API replica. It fails when the server cannot be reached.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisRateLimiter{client: client, logger: logger, timeout: 250 * time.Millisecond}, nil
}

// Allow fails open: a redis error never blocks a request.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := redisKeyPrefix + key
	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	pttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logRedisError("pipeline", key, err)
		return rateDecision{allowed: true}
	}

	count := int(incr.Val())
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = window
	}
	return rateDecision{
		allowed:   count <= limit,
		count:     count,
		windowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisRateLimiter) logRedisError(op, key string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "key", rateMetricKey(key), "error", err)
}
