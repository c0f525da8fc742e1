package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/names"
	"github.com/okian/duelkit/pkg/metrics"
)

// MemoryStore implements Store in memory. Tournaments are cloned on the way
// in and out so callers never share state with the store. Nothing survives a
// restart; it backs ephemeral deployments and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	guilds map[uint64]map[string]*bracket.Tournament
	size   atomic.Int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{guilds: make(map[uint64]map[string]*bracket.Tournament)}
}

// Load returns a copy of the tournament stored under name.
func (s *MemoryStore) Load(ctx context.Context, guildID uint64, name string) (*bracket.Tournament, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := names.ValidateKey(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.guilds[guildID][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t.Clone(), nil
}

// Put writes t unconditionally.
func (s *MemoryStore) Put(ctx context.Context, guildID uint64, t *bracket.Tournament) error {
	return s.write(ctx, guildID, t, false)
}

// Update writes t if nobody else has written since it was loaded.
func (s *MemoryStore) Update(ctx context.Context, guildID uint64, t *bracket.Tournament) error {
	return s.write(ctx, guildID, t, true)
}

func (s *MemoryStore) write(ctx context.Context, guildID uint64, t *bracket.Tournament, conditional bool) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := names.ValidateKey(t.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	guild, ok := s.guilds[guildID]
	if !ok {
		guild = make(map[string]*bracket.Tournament)
		s.guilds[guildID] = guild
	}
	var current int64
	prev, exists := guild[t.Name]
	if exists {
		current = prev.Revision
	}
	if conditional {
		switch {
		case !exists && t.Revision != 0:
			return fmt.Errorf("%w: %s", ErrNotFound, t.Name)
		case current != t.Revision:
			metrics.RecordConflict()
			return fmt.Errorf("%w: %s at revision %d, have %d", ErrConflict, t.Name, current, t.Revision)
		}
	}

	t.Revision = current + 1
	guild[t.Name] = t.Clone()
	if !exists {
		s.size.Add(1)
	}
	return nil
}

// List returns copies of every tournament of guildID whose name starts with
// prefix, sorted by name.
func (s *MemoryStore) List(ctx context.Context, guildID uint64, prefix string) ([]*bracket.Tournament, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*bracket.Tournament
	for name, t := range s.guilds[guildID] {
		if strings.HasPrefix(name, prefix) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Count returns the number of stored tournaments across all guilds.
func (s *MemoryStore) Count(_ context.Context) int {
	return int(s.size.Load())
}
