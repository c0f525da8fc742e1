package api

import (
	"strings"

	"github.com/okian/duelkit/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLive serves websocket subscriptions through ls.
func WithLive(ls LiveServer) Option {
	return func(s *Server) {
		if ls != nil {
			s.live = ls
		}
	}
}

// WithLimiter applies per-user cooldowns to bracket creation and charts.
func WithLimiter(l Limiter) Option {
	return func(s *Server) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithAllowedOrigins sets the CORS origins. Empty entries are ignored.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		var out []string
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
		if len(out) > 0 {
			s.origins = out
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
