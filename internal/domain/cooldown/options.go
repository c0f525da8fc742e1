package cooldown

import "time"

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithInterval sets the time between allowed commands. Zero disables cooldowns.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.interval = d
		}
	}
}

// WithBurst sets how many commands may run back to back.
func WithBurst(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.burst = n
		}
	}
}

// WithCleanupThreshold sets the map size above which idle entries are pruned.
func WithCleanupThreshold(n int) Option {
	return func(t *Tracker) {
		if n >= 0 {
			t.cleanupThreshold = n
		}
	}
}

// WithMaxIdleAge sets how long an idle user is remembered.
func WithMaxIdleAge(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.maxIdleAge = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}
