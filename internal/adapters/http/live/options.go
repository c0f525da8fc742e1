package live

import (
	"net/http"
	"strings"

	"github.com/okian/duelkit/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins restricts browser origins allowed to subscribe. An empty
// list or "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[strings.ToLower(o)] = struct{}{}
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[strings.ToLower(origin)]
			return ok
		}
	}
}
