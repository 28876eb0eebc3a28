package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartinhale/adherence/internal/adapters/http/api"
	"github.com/smartinhale/adherence/internal/adapters/http/swagger"
	"github.com/smartinhale/adherence/internal/adapters/http/ws"
	"github.com/smartinhale/adherence/internal/adapters/mq/natsbridge"
	service "github.com/smartinhale/adherence/internal/app"
	"github.com/smartinhale/adherence/internal/config"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// Route paths of the WebSocket endpoints.
const (
	deviceSocketPath = "/v1/ws/device"
	feedSocketPath   = "/v1/ws/feed"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't configured yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the service and its transports and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	hub := ws.NewHub()
	go hub.Run(ctx)

	opts, err := service.FromConfig(cfg)
	if err != nil {
		return err
	}
	svc := service.New(append(opts, service.WithLogger(log.Named("service")), service.WithFeed(hub))...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if cfg.NATS.URL != "" {
		bridge := natsbridge.New(cfg.NATS.URL, svc, natsbridge.WithSubjectPrefix(cfg.NATS.SubjectPrefix))
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = bridge.Close() }()
	}

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHandler mounts the API, docs and WebSocket endpoints on one router.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service, hub *ws.Hub) http.Handler {
	docs := swagger.Handler(ctx)
	return api.NewServer(svc,
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithIngestRateLimit(cfg.IngestRateLimit),
		api.WithHandler(deviceSocketPath, ws.DeviceHandler(svc, ws.WithAllowedOrigins(cfg.CORSOrigins...))),
		api.WithHandler(feedSocketPath, ws.FeedHandler(hub, ws.WithAllowedOrigins(cfg.CORSOrigins...))),
		api.WithHandler(swagger.DocsPath, docs),
		api.WithHandler(swagger.SpecPath, docs),
	).Handler()
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if n, ok := stats["events"].(int); ok {
		metrics.UpdateStoreSize(n)
	}
	if n, ok := stats["capacity"].(int); ok {
		metrics.UpdateStoreCapacity(n)
	}
}
