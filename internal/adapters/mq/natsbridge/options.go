package natsbridge

import (
	"time"

	"github.com/smartinhale/adherence/pkg/logger"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithSubjectPrefix sets the prefix of the payload and state subjects.
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithName sets the client connection name reported to the server.
func WithName(name string) Option {
	return func(b *Bridge) {
		if name != "" {
			b.name = name
		}
	}
}

// WithReconnect bounds reconnect attempts and the wait between them.
func WithReconnect(maxAttempts int, wait time.Duration) Option {
	return func(b *Bridge) {
		b.maxReconnects = maxAttempts
		if wait > 0 {
			b.reconnectWait = wait
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}
