package blob

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// BreakerOptions configures NewBreaker.
type BreakerOptions struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Breaker short-circuits a remote Store after repeated failures. A missing
// key is a normal answer and does not count as a failure.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker wraps next.
func NewBreaker(next Store, o BreakerOptions) *Breaker {
	if o.ConsecutiveFailures == 0 {
		o.ConsecutiveFailures = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        o.Name,
		MaxRequests: 1,
		Timeout:     o.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			logger.Get().Warn(context.Background(), "blob store breaker state changed",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	}
	metrics.UpdateBreakerState(o.Name, int(gobreaker.StateClosed))
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Load reads key through the breaker.
func (b *Breaker) Load(ctx context.Context, key string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.next.Load(ctx, key)
	})
}

// Save writes key through the breaker.
func (b *Breaker) Save(ctx context.Context, key string, value []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Save(ctx, key, value)
	})
	return err
}

// Close closes the wrapped store.
func (b *Breaker) Close() error {
	return b.next.Close()
}
