package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/duelkit/pkg/metrics"
)

// KeyLocker hands out one exclusive lock per key. Locks are reference
// counted and dropped once nobody holds or waits for them, so the map only
// grows with concurrently active keys.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyLocker creates an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the lock and must be called exactly once.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()

	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
		metrics.RecordLockWait(float64(time.Since(start).Microseconds()) / 1000)
	case <-ctx.Done():
		l.release(key, kl)
		metrics.RecordErrorByComponent("repository", "lock_timeout")
		return nil, fmt.Errorf("lock %q: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.release(key, kl)
		})
	}, nil
}

func (l *KeyLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently locked or awaited.
func (l *KeyLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
