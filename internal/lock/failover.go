package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"giftwrap/internal/metrics"
	"github.com/rs/zerolog"
)

// Locker is the shape shared by every lock implementation.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

const recoveryInterval = time.Minute

// FailoverLocker prefers primary and switches to fallback while primary is
// unreachable, probing primary again once per recovery interval.
type FailoverLocker struct {
	primary  Locker
	fallback Locker
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverLocker combines a distributed primary with a local fallback.
func NewFailoverLocker(primary, fallback Locker, logger *zerolog.Logger) *FailoverLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLocker{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverLocker) shouldTryPrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) > recoveryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverLocker) markDown(err error) {
	if !f.isDown.Swap(true) {
		f.logger.Error().Err(err).Msg("primary lock backend failed, switching to local locks")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverLocker) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("primary lock backend recovered")
	}
}

// Lock takes key on primary, or on fallback when primary is down.
func (f *FailoverLocker) Lock(ctx context.Context, key string) (func(), error) {
	if f.shouldTryPrimary() {
		unlock, err := f.primary.Lock(ctx, key)
		if err == nil {
			f.markUp()
			return unlock, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		f.markDown(err)
	}

	metrics.IncLockFailover()
	return f.fallback.Lock(ctx, key)
}
