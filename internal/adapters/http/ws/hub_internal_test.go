package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartystreets/goconvey/convey"

	"github.com/smartinhale/adherence/pkg/logger"
)

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestHub_DroppedClientPing(t *testing.T) {
	convey.Convey("Given a hub with a client whose writer is stalled", t, func() {
		_ = logger.Init()
		hub := NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		upgrader := newConfig("ws.test", nil).upgrader()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			c := newClient(hub, conn)
			if !hub.join(c) {
				_ = conn.Close()
				return
			}
			// No writePump: queued messages are never drained.
			go c.readPump()
		}))
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		convey.So(err, convey.ShouldBeNil)
		defer conn.Close()
		convey.So(waitUntil(func() bool { return hub.Clients() == 1 }), convey.ShouldBeTrue)

		convey.Convey("A ping after the hub drops it ends the client without crashing", func() {
			for i := 0; i < 70; i++ {
				hub.Broadcast("event", i)
			}
			convey.So(waitUntil(func() bool { return hub.Clients() == 0 }), convey.ShouldBeTrue)

			convey.So(conn.WriteJSON(Message{Type: MessageTypePing}), convey.ShouldBeNil)

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(strings.Contains(err.Error(), "timeout"), convey.ShouldBeFalse)

			// The hub keeps serving new clients.
			feed := httptest.NewServer(FeedHandler(hub))
			defer feed.Close()
			other, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(feed.URL, "http"), nil)
			convey.So(err, convey.ShouldBeNil)
			defer other.Close()
			convey.So(waitUntil(func() bool { return hub.Clients() == 1 }), convey.ShouldBeTrue)
		})
	})
}
