// Command device-sim plays a SmartInhale device against a running service:
// it walks the connection lifecycle, sends random inhalation events over
// the chosen wire format and prints the resulting adherence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartinhale/adherence/internal/simulator"
	"github.com/smartinhale/adherence/pkg/logger"
)

const (
	defaultBaseURL  = "http://localhost:9080"
	defaultInterval = 500 * time.Millisecond
	defaultTimeout  = 10 * time.Second
)

func main() {
	var (
		baseURL  = flag.String("url", defaultBaseURL, "Base URL of the service")
		count    = flag.Int("count", simulator.DefaultCount, "Number of events to send")
		interval = flag.Duration("interval", defaultInterval, "Delay between events")
		wire     = flag.String("wire", simulator.WireJSON, "Payload format: json or binary")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := simulator.Config{
		BaseURL:  *baseURL,
		Count:    *count,
		Interval: *interval,
		Wire:     *wire,
		Timeout:  *timeout,
	}
	stats, err := simulator.Run(ctx, cfg, simulator.NewGenerator())
	if err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}

	var view struct {
		Date          string `json:"date"`
		TodaysCount   int    `json:"todaysCount"`
		ExpectedDoses int    `json:"expectedDoses"`
		Adherence     int    `json:"adherence"`
	}
	client := simulator.NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Adherence(ctx, &view); err != nil {
		logger.Get().Warn(ctx, "adherence fetch failed", logger.Error(err))
	}

	fmt.Printf("sent=%d failed=%d duration=%s\n", stats.Sent, stats.Failed, stats.Duration.Round(time.Millisecond))
	fmt.Printf("date=%s today=%d/%d adherence=%d%%\n", view.Date, view.TodaysCount, view.ExpectedDoses, view.Adherence)
}
