package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/smartinhale/adherence/internal/adapters/http/ws"
	"github.com/smartinhale/adherence/internal/domain/connstate"
	"github.com/smartinhale/adherence/pkg/logger"
)

type fakeBridge struct {
	mu       sync.Mutex
	payloads [][]byte
	sources  []string
	states   []string
	device   *connstate.DeviceInfo
}

func (f *fakeBridge) SubmitPayload(_ context.Context, source string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, data)
	f.sources = append(f.sources, source)
	return true
}

func (f *fakeBridge) PublishState(_ context.Context, state string) connstate.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	return connstate.Status{State: state}
}

func (f *fakeBridge) SetDevice(info *connstate.DeviceInfo) connstate.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.device = info
	return connstate.Status{Device: info}
}

func (f *fakeBridge) snapshot() (payloads [][]byte, states []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...), append([]string(nil), f.states...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func lastState(f *fakeBridge) string {
	_, states := f.snapshot()
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1]
}

func TestDeviceHandler(t *testing.T) {
	Convey("Given a device socket over a fake bridge", t, func() {
		_ = logger.Init()
		bridge := &fakeBridge{}
		srv := httptest.NewServer(ws.DeviceHandler(bridge))
		defer srv.Close()

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?device=SmartInhaler-01", nil)
		So(err, ShouldBeNil)
		So(resp.StatusCode, ShouldEqual, http.StatusSwitchingProtocols)
		defer conn.Close()

		So(eventually(func() bool { return lastState(bridge) == connstate.Connected }), ShouldBeTrue)
		bridge.mu.Lock()
		So(bridge.device, ShouldNotBeNil)
		So(bridge.device.Name, ShouldEqual, "SmartInhaler-01")
		bridge.mu.Unlock()

		Convey("Text and binary frames are submitted as payloads", func() {
			So(conn.WriteMessage(websocket.TextMessage, []byte(`{"strength":0.7}`)), ShouldBeNil)
			So(conn.WriteMessage(websocket.BinaryMessage, make([]byte, 17)), ShouldBeNil)

			So(eventually(func() bool {
				p, _ := bridge.snapshot()
				return len(p) == 2
			}), ShouldBeTrue)
			payloads, _ := bridge.snapshot()
			So(string(payloads[0]), ShouldEqual, `{"strength":0.7}`)
			So(payloads[1], ShouldHaveLength, 17)
			bridge.mu.Lock()
			So(bridge.sources, ShouldResemble, []string{"ws", "ws"})
			bridge.mu.Unlock()
		})

		Convey("A clean close publishes disconnected", func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
			So(conn.WriteMessage(websocket.CloseMessage, msg), ShouldBeNil)
			So(eventually(func() bool { return lastState(bridge) == connstate.Disconnected }), ShouldBeTrue)
		})

		Convey("A dropped socket publishes an error state", func() {
			So(conn.UnderlyingConn().Close(), ShouldBeNil)
			So(eventually(func() bool { return connstate.IsError(lastState(bridge)) }), ShouldBeTrue)
		})
	})
}

func TestFeedHandler(t *testing.T) {
	Convey("Given a running hub behind the feed endpoint", t, func() {
		_ = logger.Init()
		hub := ws.NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		srv := httptest.NewServer(ws.FeedHandler(hub))
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		So(err, ShouldBeNil)
		defer conn.Close()
		So(eventually(func() bool { return hub.Clients() == 1 }), ShouldBeTrue)

		Convey("Broadcasts reach the client as typed messages", func() {
			hub.Broadcast("state", map[string]string{"state": "connected"})

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg ws.Message
			So(conn.ReadJSON(&msg), ShouldBeNil)
			So(msg.Type, ShouldEqual, "state")
			So(msg.Data, ShouldResemble, map[string]any{"state": "connected"})
		})

		Convey("Client pings are answered with pongs", func() {
			So(conn.WriteJSON(ws.Message{Type: ws.MessageTypePing}), ShouldBeNil)

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg ws.Message
			So(conn.ReadJSON(&msg), ShouldBeNil)
			So(msg.Type, ShouldEqual, ws.MessageTypePong)
		})

		Convey("Closing the client unregisters it", func() {
			So(conn.Close(), ShouldBeNil)
			So(eventually(func() bool { return hub.Clients() == 0 }), ShouldBeTrue)
		})

		Convey("Stopping the hub closes clients", func() {
			cancel()
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			So(websocket.IsCloseError(err, websocket.CloseNormalClosure), ShouldBeTrue)
		})
	})
}

func TestCheckOrigin(t *testing.T) {
	Convey("Given a device socket restricted to one origin", t, func() {
		_ = logger.Init()
		srv := httptest.NewServer(ws.DeviceHandler(&fakeBridge{}, ws.WithAllowedOrigins("https://app.example")))
		defer srv.Close()

		Convey("Other origins are refused", func() {
			h := http.Header{"Origin": []string{"https://evil.example"}}
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), h)
			So(err, ShouldNotBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
		})

		Convey("The allowed origin connects", func() {
			h := http.Header{"Origin": []string{"https://app.example"}}
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), h)
			So(err, ShouldBeNil)
			_ = conn.Close()
		})
	})
}
