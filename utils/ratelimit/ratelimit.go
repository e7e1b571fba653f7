package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rule is a request budget: at most Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule limits anything. A zero rule is unlimited.
func (r Rule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// PerMinute builds a one-minute rule.
func PerMinute(limit int) Rule {
	return Rule{Limit: limit, Window: time.Minute}
}

// Limiter counts hits per key in fixed windows stored in Redis.
// Counters live under "ratelimit:<key>:<window start>" and expire with the window.
type Limiter struct {
	rdb      *redis.Client
	logger   *zap.Logger
	failOpen bool
	now      func() time.Time
}

// NewLimiter creates a limiter. With failOpen set, Redis errors let the request
// through instead of rejecting it.
func NewLimiter(rdb *redis.Client, logger *zap.Logger, failOpen bool) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{rdb: rdb, logger: logger, failOpen: failOpen, now: time.Now}
}

// WithClock replaces the time source used to pick the current window.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records one hit for key and reports whether it fits in the rule.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	return l.AllowN(ctx, key, 1, rule)
}

// AllowN records n hits at once.
func (l *Limiter) AllowN(ctx context.Context, key string, n int, rule Rule) (bool, error) {
	if !rule.Enabled() {
		return true, nil
	}
	bucket := l.bucketKey(key, rule.Window)

	pipe := l.rdb.TxPipeline()
	incr := pipe.IncrBy(ctx, bucket, int64(n))
	pipe.ExpireNX(ctx, bucket, rule.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.failOpen {
			l.logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	count := incr.Val()
	if count > int64(rule.Limit) {
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit),
		)
		return false, nil
	}
	return true, nil
}

// Remaining returns how many hits key has left in the current window.
func (l *Limiter) Remaining(ctx context.Context, key string, rule Rule) (int, error) {
	if !rule.Enabled() {
		return rule.Limit, nil
	}
	count, err := l.rdb.Get(ctx, l.bucketKey(key, rule.Window)).Int()
	if errors.Is(err, redis.Nil) {
		return rule.Limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit remaining: %w", err)
	}
	return max(rule.Limit-count, 0), nil
}

// Reset drops the current window's counter for key.
func (l *Limiter) Reset(ctx context.Context, key string, rule Rule) error {
	if err := l.rdb.Del(ctx, l.bucketKey(key, rule.Window)).Err(); err != nil {
		return fmt.Errorf("rate limit reset %s: %w", key, err)
	}
	return nil
}

func (l *Limiter) bucketKey(key string, window time.Duration) string {
	start := l.now().Truncate(window).Unix()
	return fmt.Sprintf("ratelimit:%s:%d", key, start)
}
