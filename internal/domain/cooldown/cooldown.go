// Package cooldown tracks per-user command cooldowns.
//
// A Tracker is created once at startup and passed to whoever needs it; there
// is no package level state.
package cooldown

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Default cooldown configuration constants.
const (
	defaultInterval         = 5 * time.Second
	defaultBurst            = 1
	defaultCleanupThreshold = 500
	defaultMaxIdleAge       = 10 * time.Minute
)

// Limiter decides whether a user may run an expensive command now.
type Limiter interface {
	// Allow consumes one token for userID. When the user is cooling down it
	// returns false and how long to wait.
	Allow(ctx context.Context, userID string) (bool, time.Duration)

	// Reset forgets userID, ending any cooldown.
	Reset(ctx context.Context, userID string)

	Size() int64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Tracker implements Limiter with one token bucket per user. Entries idle
// longer than maxIdleAge are pruned inline once the map grows past
// cleanupThreshold.
type Tracker struct {
	mu               sync.Mutex
	users            map[string]*entry
	interval         time.Duration
	burst            int
	cleanupThreshold int
	maxIdleAge       time.Duration
	now              func() time.Time
	size             atomic.Int64
}

// NewTracker creates a tracker with configuration options.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		interval:         defaultInterval,
		burst:            defaultBurst,
		cleanupThreshold: defaultCleanupThreshold,
		maxIdleAge:       defaultMaxIdleAge,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.users = make(map[string]*entry)
	return t
}

// Allow consumes one token for userID.
func (t *Tracker) Allow(_ context.Context, userID string) (bool, time.Duration) {
	if t.interval <= 0 {
		return true, 0
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.users) > t.cleanupThreshold {
		t.pruneLocked(now)
	}

	e, ok := t.users[userID]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(t.interval), t.burst)}
		t.users[userID] = e
		t.size.Add(1)
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, t.interval
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Reset forgets userID.
func (t *Tracker) Reset(_ context.Context, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.users[userID]; ok {
		delete(t.users, userID)
		t.size.Add(-1)
	}
}

// Prune drops entries idle longer than the max idle age and returns how many were removed.
func (t *Tracker) Prune(_ context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pruneLocked(t.now())
}

func (t *Tracker) pruneLocked(now time.Time) int {
	cutoff := now.Add(-t.maxIdleAge)
	removed := 0
	for k, e := range t.users {
		if e.lastSeen.Before(cutoff) {
			delete(t.users, k)
			removed++
		}
	}
	t.size.Add(int64(-removed))
	return removed
}

// Size returns the number of tracked users.
func (t *Tracker) Size() int64 {
	return t.size.Load()
}
