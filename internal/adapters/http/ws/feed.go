package ws

import (
	"net/http"

	"github.com/smartinhale/adherence/pkg/logger"
)

// FeedHandler upgrades dashboard connections and attaches them to hub.
func FeedHandler(hub *Hub, opts ...Option) http.Handler {
	cfg := newConfig("ws.feed", opts)
	upgrader := cfg.upgrader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.log.Warn(r.Context(), "feed upgrade failed", logger.Error(err))
			return
		}
		c := newClient(hub, conn)
		if !hub.join(c) {
			_ = conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	})
}
