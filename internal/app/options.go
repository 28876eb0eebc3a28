package service

import (
	"time"

	"github.com/smartinhale/adherence/internal/adapters/blob"
	"github.com/smartinhale/adherence/internal/config"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/internal/simulator"
	"github.com/smartinhale/adherence/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum size of the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithEventCapacity sets how many events the store retains.
func WithEventCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithExpectedDosesPerDay sets the adherence denominator.
func WithExpectedDosesPerDay(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.expectedDoses = n
		}
	}
}

// WithStrengthThreshold sets the correct-technique strength threshold.
func WithStrengthThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 {
			s.threshold = threshold
		}
	}
}

// WithLocation sets the zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRecentLimit sets how many recent events the dashboard carries.
func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// WithDefaultPatient sets the patient seeded into an empty registry.
func WithDefaultPatient(p model.Patient) Option {
	return func(s *Service) {
		if p.ID != "" {
			s.defaultPatient = p
		}
	}
}

// WithStorage selects the blob backend opened on Start.
func WithStorage(cfg config.Storage) Option {
	return func(s *Service) {
		s.storage = cfg
	}
}

// WithBlobStore uses b instead of opening one from the storage config.
// The service does not close b.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) {
		if b != nil {
			s.blob = b
			s.ownsBlob = false
		}
	}
}

// WithFeed registers the live feed receiving state and event updates.
func WithFeed(f Feed) Option {
	return func(s *Service) {
		s.feed = f
	}
}

// WithGenerator replaces the synthetic event generator.
func WithGenerator(g *simulator.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the queue to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig maps a loaded Config onto service options.
func FromConfig(cfg *config.Config) ([]Option, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithQueueSize(cfg.EventQueueSize),
		WithEventCapacity(cfg.EventCapacity),
		WithExpectedDosesPerDay(cfg.ExpectedDosesPerDay),
		WithStrengthThreshold(cfg.StrengthThreshold),
		WithLocation(loc),
		WithRecentLimit(cfg.RecentLimit),
		WithDefaultPatient(model.Patient{
			ID:       cfg.DefaultPatient.ID,
			Name:     cfg.DefaultPatient.Name,
			DeviceID: cfg.DefaultPatient.DeviceID,
		}),
		WithStorage(cfg.Storage),
	}, nil
}
