package repository

import "github.com/okian/duelkit/pkg/logger"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithListConcurrency bounds how many documents List reads at once.
func WithListConcurrency(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.listConcurrency = n
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}
