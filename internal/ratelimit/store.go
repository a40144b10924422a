package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/laisky/relay-gateway/internal/logger"
)

// Store is the Gate's pluggable mirror for the rolling USD budget totals.
// The Gate's own in-memory fields stay authoritative for admission; a Store
// only receives each recorded spend, so the three budget windows are
// visible outside the process, but totals written by other replicas are
// never read back into a Gate's admission check. Grounded on
// common/redis.go's RDB Cmdable wrapper.
type Store interface {
	// AddSpend atomically adds usd to window's running total (creating it
	// with the given ttl if absent) and returns the new total.
	AddSpend(ctx context.Context, window string, usd float64, ttl time.Duration) (float64, error)
}

// RedisStore backs Gate's budget windows with Redis INCRBYFLOAT counters,
// one key per window, each re-armed with a fresh TTL on every write so a
// window's counter expires naturally at the next reset boundary.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisStore wraps an already-configured redis.Cmdable (the teacher
// keeps a single process-wide common.RDB; this gateway takes it as a
// constructor argument instead of a package global, since a Store is meant
// to be swapped per Gate instance rather than shared process state).
func NewRedisStore(rdb redis.Cmdable, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: keyPrefix}
}

func (s *RedisStore) AddSpend(ctx context.Context, window string, usd float64, ttl time.Duration) (float64, error) {
	key := fmt.Sprintf("%s:budget:%s", s.prefix, window)
	total, err := s.rdb.IncrByFloat(ctx, key, usd).Result()
	if err != nil {
		logger.Logger.Warn("redis budget store increment failed", zap.String("window", window), zap.Error(err))
		return 0, err
	}
	s.rdb.Expire(ctx, key, ttl)
	return total, nil
}
