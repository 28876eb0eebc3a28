// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"time"
)

// Storage drivers accepted by Storage.Driver.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// EventQueueSize bounds the in-memory ingestion queue.
	EventQueueSize int `koanf:"queue_size" validate:"gte=1"`

	// EventCapacity is the maximum number of events retained by the store.
	EventCapacity int `koanf:"event_capacity" validate:"gte=1"`

	// ExpectedDosesPerDay is the adherence denominator.
	ExpectedDosesPerDay int `koanf:"expected_doses_per_day" validate:"gte=1"`

	// StrengthThreshold is the minimum strength (exclusive) of a correct inhalation.
	StrengthThreshold float64 `koanf:"strength_threshold" validate:"gte=0"`

	// Timezone names the IANA zone used for calendar days. "Local" uses the host zone.
	Timezone string `koanf:"timezone"`

	// RecentLimit is how many recent events the dashboard returns.
	RecentLimit int `koanf:"recent_limit" validate:"gte=1"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// IngestRateLimit caps ingestion requests per client IP per minute. 0 disables it.
	IngestRateLimit int `koanf:"ingest_rate_limit" validate:"gte=0"`

	DefaultPatient Patient `koanf:"default_patient"`
	Storage        Storage `koanf:"storage"`
	NATS           NATS    `koanf:"nats"`
}

// Patient seeds the patient registry when nothing is persisted.
type Patient struct {
	ID       string `koanf:"id" validate:"required"`
	Name     string `koanf:"name" validate:"required"`
	DeviceID string `koanf:"device_id" validate:"required"`
}

// Storage configures the blob store backing events and patients.
type Storage struct {
	Driver string `koanf:"driver" validate:"oneof=memory badger redis postgres"`

	// Path is the badger directory. Empty runs badger in memory.
	Path string `koanf:"path"`

	RedisAddr     string `koanf:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"gte=0"`
	RedisPrefix   string `koanf:"redis_prefix"`

	PostgresURL string `koanf:"postgres_url" validate:"required_if=Driver postgres"`

	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// NATS configures the optional message bus bridge. An empty URL disables it.
type NATS struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix" validate:"required"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		EventQueueSize:      1024,
		EventCapacity:       1000,
		ExpectedDosesPerDay: 2,
		StrengthThreshold:   0.5,
		Timezone:            "Local",
		RecentLimit:         50,
		CORSOrigins:         []string{"*"},
		IngestRateLimit:     600,
		DefaultPatient: Patient{
			ID:       "p1",
			Name:     "Default Patient",
			DeviceID: "device-001",
		},
		Storage: Storage{
			Driver:          DriverBadger,
			Path:            "data",
			RedisAddr:       "localhost:6379",
			RedisPrefix:     "smartinhale:",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		NATS: NATS{
			SubjectPrefix: "smartinhale",
		},
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}
