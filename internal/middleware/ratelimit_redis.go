package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter is a fixed-window counter shared by every replica through Redis.
type RedisLimiter struct {
	client *redis.Client
	name   string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows limit requests per window for each client. name
// separates the counters of different limiters on the same Redis.
func NewRedisLimiter(client *redis.Client, name string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, name: name, limit: int64(limit), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key, time.Now())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.PExpire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= l.limit, nil
}

func (l *RedisLimiter) key(client string, at time.Time) string {
	bucket := at.UnixNano() / int64(l.window)
	return fmt.Sprintf("taskflow:ratelimit:%s:%s:%d", l.name, client, bucket)
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
