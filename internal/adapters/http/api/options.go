package api

import (
	"net/http"

	"github.com/smartinhale/adherence/pkg/logger"
)

const defaultMaxBody = 64 << 10

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithIngestRateLimit caps ingestion requests per client IP per minute.
// Zero disables the limit.
func WithIngestRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.rateLimit = perMinute
		}
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithHandler mounts an extra handler on the router, such as WebSocket
// endpoints or API docs.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) {
		if pattern != "" && h != nil {
			s.mounts = append(s.mounts, mount{pattern: pattern, handler: h})
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
