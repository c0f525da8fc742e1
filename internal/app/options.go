package service

import (
	"math/rand/v2"
	"time"

	"github.com/okian/duelkit/internal/adapters/repository"
	"github.com/okian/duelkit/internal/adapters/storage"
	"github.com/okian/duelkit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the tournament store. Start creates a FileStore under the
// data directory when none is given.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDataDir sets the directory holding tournament documents and exports.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dataDir = dir
		}
	}
}

// WithExportWorkers sets the number of export workers.
func WithExportWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.exportWorkers = count
		}
	}
}

// WithExportQueueSize sets the capacity of the export queue.
func WithExportQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.exportQueueSize = size
		}
	}
}

// WithConflictRetries sets how many times a mutation is retried after a
// concurrent write.
func WithConflictRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.conflictRetries = n
		}
	}
}

// WithResultOverwrite controls whether a resolved match may be reported again
// with a different winner.
func WithResultOverwrite(allow bool) Option {
	return func(s *Service) {
		s.allowOverwrite = allow
	}
}

// WithShuffler replaces the player shuffle applied before a bracket is built.
func WithShuffler(shuffle func([]string)) Option {
	return func(s *Service) {
		if shuffle != nil {
			s.shuffle = shuffle
		}
	}
}

// WithClock sets the time source used to date tournaments.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher sets where bracket updates are pushed.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithUploader uploads finished exports in addition to writing them to disk.
func WithUploader(u storage.Uploader) Option {
	return func(s *Service) {
		if u != nil {
			s.uploader = u
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func shufflePlayers(players []string) {
	rand.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})
}
