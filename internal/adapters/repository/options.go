package repository

import "time"

// Option applies a configuration option to the EventStore.
type Option func(*EventStore)

// WithCapacity sets how many events are retained. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *EventStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithKey overrides the blob key the snapshot is persisted under.
func WithKey(key string) Option {
	return func(s *EventStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *EventStore) {
		if now != nil {
			s.now = now
		}
	}
}
