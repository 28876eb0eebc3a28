package blob

import (
	"context"
	"fmt"

	"github.com/smartinhale/adherence/internal/config"
)

// Open builds the Store selected by cfg.Driver. Network backends are wrapped
// in a Breaker.
func Open(ctx context.Context, cfg config.Storage) (Store, error) {
	breaker := func(name string, s Store) Store {
		return NewBreaker(s, BreakerOptions{
			Name:                name,
			ConsecutiveFailures: cfg.BreakerFailures,
			OpenTimeout:         cfg.BreakerTimeout,
		})
	}

	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case "", config.DriverBadger:
		return OpenBadger(cfg.Path)
	case config.DriverRedis:
		r, err := OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return breaker("redis", r), nil
	case config.DriverPostgres:
		p, err := OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return breaker("postgres", p), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
