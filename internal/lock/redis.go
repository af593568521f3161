package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultLockRetry = 50 * time.Millisecond
)

// ErrLockTimeout is returned when a key stays held until the wait deadline.
var ErrLockTimeout = errors.New("lock wait timed out")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX based lock shared by every instance using the same Redis.
type RedisLocker struct {
	rdb     *redis.Client
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
	logger  *zerolog.Logger
}

// NewRedisLocker creates a distributed locker. Zero durations take defaults.
func NewRedisLocker(rdb *redis.Client, ttl, maxWait time.Duration, logger *zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if maxWait <= 0 {
		maxWait = ttl
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, retry: defaultLockRetry, maxWait: maxWait, logger: logger}
}

// Lock acquires key, polling until it is released, expires or maxWait passes.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrLockTimeout)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// Release outlives the caller context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("lock release failed")
		}
	}, nil
}
