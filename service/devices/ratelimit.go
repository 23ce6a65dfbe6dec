package devices

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRegistrationLimit is the number of registrations allowed per
// source IP per hourly bucket.
const DefaultRegistrationLimit = 100

// RedisRateLimiter counts requests per source in hourly redis buckets.
// If redis itself is unreachable the limiter fails open: a limiter outage
// must never block legitimate registrations.
type RedisRateLimiter struct {
	rdb   *redis.Client
	limit int64
}

func NewRedisRateLimiter(rdb *redis.Client, limit int64) *RedisRateLimiter {
	if limit <= 0 {
		limit = DefaultRegistrationLimit
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, source string) bool {
	bucket := time.Now().UTC().Format("2006010215")
	key := fmt.Sprintf("ratelimit:register:%s:%s", source, bucket)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("Rate limiter unavailable, failing open: %v", err)
		return true
	}

	if count == 1 {
		// First hit in this bucket, make sure the key expires
		l.rdb.Expire(ctx, key, time.Hour)
	}

	return count <= l.limit
}
