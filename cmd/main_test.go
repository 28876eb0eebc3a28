package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartystreets/goconvey/convey"

	"github.com/smartinhale/adherence/internal/adapters/http/ws"
	service "github.com/smartinhale/adherence/internal/app"
	"github.com/smartinhale/adherence/internal/config"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Timezone = "UTC"
	return cfg
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given the wired application handler", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg := testConfig()
		hub := ws.NewHub()
		go hub.Run(ctx)

		opts, err := service.FromConfig(cfg)
		convey.So(err, convey.ShouldBeNil)
		svc := service.New(append(opts, service.WithFeed(hub))...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newHandler(ctx, cfg, svc, hub))
		defer srv.Close()

		get := func(path string) (int, string) {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(body)
		}

		convey.Convey("API, docs and metrics routes are served", func() {
			code, _ := get("/healthz")
			convey.So(code, convey.ShouldEqual, http.StatusOK)

			code, body := get("/api-docs")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "redoc")

			code, body = get("/openapi.yaml")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldStartWith, "openapi:")

			code, _ = get("/v1/adherence")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("A device frame reaches the feed as an event", func() {
			base := "ws" + strings.TrimPrefix(srv.URL, "http")

			feed, _, err := websocket.DefaultDialer.Dial(base+feedSocketPath, nil)
			convey.So(err, convey.ShouldBeNil)
			defer feed.Close()

			device, _, err := websocket.DefaultDialer.Dial(base+deviceSocketPath, nil)
			convey.So(err, convey.ShouldBeNil)
			defer device.Close()
			convey.So(device.WriteMessage(websocket.TextMessage, []byte(`{"strength":0.9,"duration":1.2}`)), convey.ShouldBeNil)

			seen := map[string]bool{}
			_ = feed.SetReadDeadline(time.Now().Add(3 * time.Second))
			for !seen["event"] {
				var msg ws.Message
				if err := feed.ReadJSON(&msg); err != nil {
					break
				}
				seen[msg.Type] = true
			}
			convey.So(seen["event"], convey.ShouldBeTrue)
			convey.So(svc.Events(10), convey.ShouldHaveLength, 1)
		})
	})
}

func TestUpdateServiceMetrics(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		_ = logger.Init()
		svc := service.New(service.WithStorage(config.Storage{Driver: config.DriverMemory}))
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("Refreshing service metrics exposes store gauges", func() {
			updateServiceMetrics(svc)

			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			convey.So(strings.Join(names, ","), convey.ShouldContainSubstring, "store_capacity")
		})
	})
}
