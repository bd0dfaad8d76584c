package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/schedule"
)

// ScheduleCache is a short-TTL read cache for the interval form. It is an
// optimization only: every error degrades to the database path, and saves
// invalidate the key before committing a response.
type ScheduleCache struct {
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func New(rdb *redis.Client, logger *slog.Logger, ttl time.Duration) *ScheduleCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ScheduleCache{rdb: rdb, logger: logger, ttl: ttl}
}

func key(userID string) string {
	return "schedule:" + userID
}

// Get returns the cached schedule and whether it was present.
func (c *ScheduleCache) Get(ctx context.Context, userID string) (schedule.Schedule, bool) {
	if c == nil || c.rdb == nil {
		return schedule.Schedule{}, false
	}
	raw, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("schedule cache read failed", "err", err)
		}
		return schedule.Schedule{}, false
	}
	var s schedule.Schedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return schedule.Schedule{}, false
	}
	return s, true
}

func (c *ScheduleCache) Set(ctx context.Context, userID string, s schedule.Schedule) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("schedule cache write failed", "err", err)
	}
}

func (c *ScheduleCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		c.logger.Warn("schedule cache invalidate failed", "err", err)
	}
}

// ReadyCheck pings Redis for /readyz.
func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
