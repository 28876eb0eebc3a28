package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/smartinhale/adherence/internal/adapters/blob"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// EventStore keeps the newest events in memory and mirrors every change to a
// blob.Store. Writers are serialized; readers take the published snapshot
// without locking.
//
// Memory is authoritative: when a write to the blob store fails the mutation
// stays applied and the error is returned wrapped in ErrPersist.
type EventStore struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[Snapshot]

	blob     blob.Store
	key      string
	capacity int
	now      func() time.Time
	log      logger.Logger
}

var _ Events = (*EventStore)(nil)

// NewEventStore returns an empty store. Call LoadInitial to restore the
// persisted snapshot.
func NewEventStore(b blob.Store, opts ...Option) *EventStore {
	s := &EventStore{
		blob:     b,
		key:      EventsKey,
		capacity: DefaultCapacity,
		now:      time.Now,
		log:      logger.Named("event_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{Events: []model.Event{}, UpdatedAt: s.now()})
	metrics.UpdateStoreCapacity(s.capacity)
	metrics.UpdateStoreSize(0)
	return s
}

// Capacity returns the maximum number of retained events.
func (s *EventStore) Capacity() int { return s.capacity }

// Len returns the number of events currently held.
func (s *EventStore) Len() int { return s.snapshot.Load().Len() }

// Snapshot returns the current immutable view.
func (s *EventStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// LoadInitial restores the persisted snapshot. A missing key leaves the store
// empty. An unreadable value is logged and ignored so a corrupt snapshot
// cannot keep the service from starting.
func (s *EventStore) LoadInitial(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.blob.Load(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		s.log.Warn(ctx, "discarding unreadable event snapshot",
			logger.String("key", s.key), logger.Int("bytes", len(data)), logger.Error(err))
		return nil
	}
	if len(events) > s.capacity {
		events = events[:s.capacity]
	}
	if events == nil {
		events = []model.Event{}
	}
	s.publishLocked(events)
	s.log.Info(ctx, "event snapshot restored", logger.Int("events", len(events)))
	return nil
}

// Ingest prepends e and truncates to capacity.
func (s *EventStore) Ingest(ctx context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snapshot.Load().Events
	n := min(len(cur)+1, s.capacity)
	next := make([]model.Event, n)
	next[0] = e
	copy(next[1:], cur)

	s.publishLocked(next)
	return s.persistLocked(ctx, next)
}

// Clear empties the store.
func (s *EventStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := []model.Event{}
	s.publishLocked(empty)
	metrics.RecordEventsCleared()
	return s.persistLocked(ctx, empty)
}

func (s *EventStore) publishLocked(events []model.Event) {
	prev := s.snapshot.Load()
	now := s.now()
	s.snapshot.Store(&Snapshot{Events: events, Version: prev.Version + 1, UpdatedAt: now})
	metrics.UpdateStoreSize(len(events))
	metrics.UpdateSnapshotLastUnix(now.Unix())
}

func (s *EventStore) persistLocked(ctx context.Context, events []model.Event) error {
	start := time.Now()
	data, err := json.Marshal(events)
	if err == nil {
		err = s.blob.Save(ctx, s.key, data)
	}
	metrics.RecordPersistLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordPersistError(s.key)
		s.log.Error(ctx, "persist event snapshot failed",
			logger.String("key", s.key), logger.Int("events", len(events)), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
