// Package cache puts a Redis read-through layer in front of schedule reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"giftwrap/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ScheduleBackend is the authoritative schedule store.
type ScheduleBackend interface {
	GetSchedule(ctx context.Context, workerID string) (*model.Schedule, error)
	PutSchedule(ctx context.Context, s *model.Schedule) error
}

// cachedSchedule wraps the stored value so a missing schedule is cached too.
type cachedSchedule struct {
	Schedule *model.Schedule `json:"schedule"`
}

// ScheduleCache serves schedules from Redis and falls through to the backend.
// Redis errors are logged and never fail a read.
type ScheduleCache struct {
	backend ScheduleBackend
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zerolog.Logger
}

func NewScheduleCache(backend ScheduleBackend, rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *ScheduleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ScheduleCache{backend: backend, rdb: rdb, ttl: ttl, logger: logger}
}

func scheduleKey(workerID string) string {
	if workerID == "" {
		return "giftwrap:schedule:_global"
	}
	return "giftwrap:schedule:" + workerID
}

// GetSchedule returns the cached schedule, loading it from the backend on a miss.
func (c *ScheduleCache) GetSchedule(ctx context.Context, workerID string) (*model.Schedule, error) {
	key := scheduleKey(workerID)

	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached cachedSchedule
			if jerr := json.Unmarshal(val, &cached); jerr == nil {
				return cached.Schedule, nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache read failed")
		}
	}

	s, err := c.backend.GetSchedule(ctx, workerID)
	if err != nil {
		return nil, err
	}
	c.write(ctx, key, s)
	return s, nil
}

// PutSchedule writes through to the backend and drops the cached copy.
func (c *ScheduleCache) PutSchedule(ctx context.Context, s *model.Schedule) error {
	if err := c.backend.PutSchedule(ctx, s); err != nil {
		return err
	}
	c.Invalidate(ctx, s.WorkerID)
	return nil
}

// Invalidate drops the cached schedule of workerID.
func (c *ScheduleCache) Invalidate(ctx context.Context, workerID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, scheduleKey(workerID)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("worker_id", workerID).Msg("schedule cache invalidation failed")
	}
}

func (c *ScheduleCache) write(ctx context.Context, key string, s *model.Schedule) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(cachedSchedule{Schedule: s})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache write failed")
	}
}
