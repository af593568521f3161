// Package lock serializes booking decisions per key, in process or across
// instances through Redis.
package lock

import (
	"context"
	"sync"
)

// LocalLocker is an in-process keyed mutex that honours context cancellation.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// size is the number of keys currently tracked.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
