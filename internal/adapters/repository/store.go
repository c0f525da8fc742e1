// Package repository persists tournaments as one JSON document per
// tournament under a per-guild directory.
package repository

import (
	"context"

	"github.com/okian/duelkit/internal/domain/bracket"
)

// Store provides read/write access to tournament documents.
type Store interface {
	// Load returns the tournament stored under name.
	// Returns ErrNotFound if there is none.
	Load(ctx context.Context, guildID uint64, name string) (*bracket.Tournament, error)

	// Put writes t unconditionally, replacing any previous tournament with the
	// same name. t.Revision is advanced past the replaced document.
	Put(ctx context.Context, guildID uint64, t *bracket.Tournament) error

	// Update writes t only if the stored revision still equals t.Revision.
	// Returns ErrConflict otherwise. On success t.Revision is incremented.
	Update(ctx context.Context, guildID uint64, t *bracket.Tournament) error

	// List loads every tournament of the guild whose name starts with prefix.
	List(ctx context.Context, guildID uint64, prefix string) ([]*bracket.Tournament, error)

	// Count returns the number of stored tournaments across all guilds.
	Count(ctx context.Context) int
}
