package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartinhale/adherence/pkg/logger"
)

type config struct {
	origins []string
	log     logger.Logger
}

// Option configures a handler.
type Option func(*config)

// WithAllowedOrigins restricts the upgrade to these origins. "*" allows
// any origin. Requests without an Origin header are always accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *config) {
		c.origins = origins
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

func newConfig(name string, opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named(name)
	}
	return c
}

func (c *config) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      c.checkOrigin,
	}
}

func (c *config) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(c.origins) == 0 {
		// Same-origin only.
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range c.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
