package httpx

import (
	"context"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "toolmart:ratelimit:"
	redisDialTimeout = 2 * time.Second
	redisOpTimeout   = 250 * time.Millisecond
)

// redisLimiter counts requests in Redis so replicas behind one load balancer
// share a single window per key. Redis trouble fails open: the storefront
// keeps serving rather than rejecting traffic it cannot count.
type redisLimiter struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisRateLimiter connects and verifies the backend before returning.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisLimiter{client: client, logger: logger}, nil
}

func (rl *redisLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	counterKey := redisKeyPrefix + key
	counter, err := rl.client.Incr(ctx, counterKey).Result()
	if err != nil {
		rl.reportError("incr", err)
		return rateDecision{allowed: true}
	}
	// first hit in a window owns setting the expiry
	if counter == 1 {
		if err := rl.client.Expire(ctx, counterKey, window).Err(); err != nil {
			rl.reportError("expire", err)
		}
	}
	ttl, err := rl.client.TTL(ctx, counterKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return rateDecision{
		allowed:   int(counter) <= limit,
		count:     int(counter),
		windowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisLimiter) reportError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
