package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/smartinhale/adherence/internal/domain/connstate"
	"github.com/smartinhale/adherence/pkg/logger"
)

// Config drives a simulated device session.
type Config struct {
	BaseURL  string
	Count    int
	Interval time.Duration
	Wire     string
	Timeout  time.Duration
}

// Stats reports what a session sent.
type Stats struct {
	Sent     int
	Failed   int
	Duration time.Duration
}

// Run connects, sends cfg.Count random events and disconnects. It stops
// early when ctx is canceled.
func Run(ctx context.Context, cfg Config, gen *Generator) (Stats, error) {
	log := logger.Named("simulator")
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	start := time.Now()
	var stats Stats

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	for _, st := range []string{connstate.Requesting, connstate.Connecting, connstate.Connected} {
		if err := client.PublishState(ctx, st); err != nil {
			return stats, fmt.Errorf("publish %s: %w", st, err)
		}
	}

	count := cfg.Count
	if count <= 0 {
		count = DefaultCount
	}
	for i := 0; i < count; i++ {
		if i > 0 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				stats.Duration = time.Since(start)
				return stats, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
		e := gen.Event()
		if err := client.SendEvent(ctx, e, cfg.Wire); err != nil {
			stats.Failed++
			log.Warn(ctx, "send failed", logger.Int("index", i), logger.Error(err))
			continue
		}
		stats.Sent++
		log.Debug(ctx, "event sent",
			logger.Int64("ts", e.TS),
			logger.Float64("strength", e.Strength),
			logger.String("wire", cfg.Wire))
	}

	if err := client.PublishState(ctx, connstate.Disconnected); err != nil {
		log.Warn(ctx, "publish disconnected failed", logger.Error(err))
	}
	stats.Duration = time.Since(start)
	log.Info(ctx, "simulation finished",
		logger.Int("sent", stats.Sent),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}
