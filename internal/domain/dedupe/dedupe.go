// Package dedupe tracks keys that already have work in flight so the same
// work is not queued twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records in-flight keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key is in flight and records it if not.
	// Returns true if key was already recorded, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key so the next SeenAndRecord records it again.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. In bounded mode a full set
// records nothing and reports every key as new, so callers fall through to
// their own capacity checks.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 4096,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	return d
}

// SeenAndRecord atomically checks if key is in flight and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		return false
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord releases key.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// Size returns the number of keys in flight.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
