package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartinhale/adherence/internal/domain/connstate"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

const (
	deviceEndpoint = "device"
	deviceSource   = "ws"
)

// Bridge is what the device socket feeds.
type Bridge interface {
	SubmitPayload(ctx context.Context, source string, data []byte) bool
	PublishState(ctx context.Context, state string) connstate.Status
	SetDevice(info *connstate.DeviceInfo) connstate.Status
}

// DeviceHandler accepts a single device bridge connection per request.
// Every text or binary frame is one payload. The connection lifecycle is
// published as connected, then disconnected on a clean close or
// "error:<reason>" when the socket fails.
//
// An optional ?device=<name> query parameter records the device name.
func DeviceHandler(b Bridge, opts ...Option) http.Handler {
	cfg := newConfig("ws.device", opts)
	upgrader := cfg.upgrader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.log.Warn(r.Context(), "device upgrade failed", logger.Error(err))
			return
		}
		// The request context ends when the handler returns.
		ctx := context.WithoutCancel(r.Context())
		if name := r.URL.Query().Get("device"); name != "" {
			b.SetDevice(&connstate.DeviceInfo{Name: name})
		}
		metrics.AddWebSocketClients(deviceEndpoint, 1)
		go serveDevice(ctx, conn, b, cfg.log)
	})
}

func serveDevice(ctx context.Context, conn *websocket.Conn, b Bridge, log logger.Logger) {
	defer func() {
		_ = conn.Close()
		metrics.AddWebSocketClients(deviceEndpoint, -1)
	}()

	b.PublishState(ctx, connstate.Connected)
	log.Info(ctx, "device connected", logger.String("remote", conn.RemoteAddr().String()))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			state := closeState(err)
			b.PublishState(ctx, state)
			log.Info(ctx, "device disconnected", logger.String("state", state))
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if !b.SubmitPayload(ctx, deviceSource, data) {
			log.Warn(ctx, "payload rejected, queue full", logger.Int("bytes", len(data)))
		}
	}
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// closeState maps a read error to the lifecycle state it ends in.
func closeState(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return connstate.Disconnected
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Text != "" {
		return connstate.ErrorState(ce.Text)
	}
	return connstate.ErrorState(err.Error())
}
