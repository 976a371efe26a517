// Package ratelimit decides whether a user may trigger another campaign.
//
// Counters live in Redis so every worker pod sees the same windows. Checks
// are advisory only: Check never consumes budget, RecordUsage is called by
// the pipeline once a real campaign match happened.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ReasonHourly   = "hourly_limit_reached"
	ReasonDaily    = "daily_limit_reached"
	ReasonCooldown = "cooldown_active"
)

type Decision struct {
	Allowed bool
	Reason  string
}

type Config struct {
	MaxPerHour int
	MaxPerDay  int
	Cooldown   time.Duration
}

type Limiter struct {
	rdb *redis.Client
	cfg Config
}

func New(rdb *redis.Client, cfg Config) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg}
}

// Check returns whether the user may start another campaign conversation
// and, on deny, a stable reason code.
func (l *Limiter) Check(ctx context.Context, userID string) (Decision, error) {
	if l.cfg.Cooldown > 0 {
		n, err := l.rdb.Exists(ctx, cooldownKey(userID)).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit cooldown check: %w", err)
		}
		if n > 0 {
			return Decision{Allowed: false, Reason: ReasonCooldown}, nil
		}
	}

	now := time.Now().UTC()
	if l.cfg.MaxPerHour > 0 {
		used, err := l.count(ctx, hourKey(userID, now))
		if err != nil {
			return Decision{}, err
		}
		if used >= l.cfg.MaxPerHour {
			return Decision{Allowed: false, Reason: ReasonHourly}, nil
		}
	}
	if l.cfg.MaxPerDay > 0 {
		used, err := l.count(ctx, dayKey(userID, now))
		if err != nil {
			return Decision{}, err
		}
		if used >= l.cfg.MaxPerDay {
			return Decision{Allowed: false, Reason: ReasonDaily}, nil
		}
	}
	return Decision{Allowed: true}, nil
}

// RecordUsage consumes one unit of hourly and daily budget and arms the
// cooldown. Window keys expire on their own; the expiry is set only when
// the key is first created.
func (l *Limiter) RecordUsage(ctx context.Context, userID string) error {
	now := time.Now().UTC()

	pipe := l.rdb.TxPipeline()
	hour := pipe.Incr(ctx, hourKey(userID, now))
	day := pipe.Incr(ctx, dayKey(userID, now))
	if l.cfg.Cooldown > 0 {
		pipe.Set(ctx, cooldownKey(userID), "1", l.cfg.Cooldown)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit record usage: %w", err)
	}

	if hour.Val() == 1 {
		l.rdb.Expire(ctx, hourKey(userID, now), 2*time.Hour)
	}
	if day.Val() == 1 {
		l.rdb.Expire(ctx, dayKey(userID, now), 48*time.Hour)
	}
	return nil
}

func (l *Limiter) count(ctx context.Context, key string) (int, error) {
	n, err := l.rdb.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("ratelimit counter read: %w", err)
	}
	return n, nil
}

func hourKey(userID string, now time.Time) string {
	return fmt.Sprintf("rl:%s:h:%s", userID, now.Format("2006010215"))
}

func dayKey(userID string, now time.Time) string {
	return fmt.Sprintf("rl:%s:d:%s", userID, now.Format("20060102"))
}

func cooldownKey(userID string) string {
	return "rl:" + userID + ":cd"
}
