// Package service wires the ingestion pipeline together and provides the
// operations the HTTP, WebSocket and NATS adapters depend on.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smartinhale/adherence/internal/adapters/blob"
	eventqueue "github.com/smartinhale/adherence/internal/adapters/mq/queue"
	"github.com/smartinhale/adherence/internal/adapters/mq/worker"
	"github.com/smartinhale/adherence/internal/adapters/repository"
	"github.com/smartinhale/adherence/internal/config"
	"github.com/smartinhale/adherence/internal/domain/adherence"
	"github.com/smartinhale/adherence/internal/domain/connstate"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/internal/simulator"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// Feed message kinds.
const (
	FeedState   = "state"
	FeedEvent   = "event"
	FeedCleared = "cleared"
)

// Feed receives live updates for connected clients.
type Feed interface {
	Broadcast(kind string, data any)
}

// Dashboard is the full view rendered by a client.
type Dashboard struct {
	Patient    *model.Patient   `json:"patient"`
	Connection connstate.Status `json:"connection"`
	adherence.Summary
}

// Service owns the pipeline: one queue drained by one worker into the
// event store, with metrics computed from the store's snapshot.
type Service struct {
	mu sync.RWMutex

	// Core components
	blob     blob.Store
	ownsBlob bool
	store    *repository.EventStore
	patients *repository.PatientRegistry
	queue    *eventqueue.InMemoryQueue
	worker   *worker.InMemoryWorker
	engine   *adherence.Engine
	notifier *connstate.Notifier
	gen      *simulator.Generator
	feed     Feed

	// Configuration
	queueSize       int
	capacity        int
	expectedDoses   int
	threshold       float64
	loc             *time.Location
	recentLimit     int
	defaultPatient  model.Patient
	storage         config.Storage
	shutdownTimeout time.Duration
	now             func() time.Time

	// State
	started bool
	cancel  context.CancelFunc
	bg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ownsBlob:        true,
		queueSize:       1024,
		capacity:        repository.DefaultCapacity,
		expectedDoses:   adherence.DefaultExpectedDosesPerDay,
		threshold:       model.DefaultStrengthThreshold,
		loc:             time.Local,
		recentLimit:     50,
		defaultPatient:  model.Patient{ID: "p1", Name: "Default Patient", DeviceID: "device-001"},
		storage:         config.Storage{Driver: config.DriverMemory},
		shutdownTimeout: 5 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notifier = connstate.New(connstate.WithClock(s.now))
	if s.gen == nil {
		s.gen = simulator.NewGenerator(simulator.WithClock(s.now))
	}
	s.engine = adherence.New(
		adherence.WithExpectedDosesPerDay(s.expectedDoses),
		adherence.WithStrengthThreshold(s.threshold),
		adherence.WithLocation(s.loc),
	)
	return s
}

// Start opens storage, restores persisted state and starts the worker.
// A snapshot that cannot be read is logged and the service starts empty.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting adherence service...")

	if s.blob == nil {
		b, err := blob.Open(ctx, s.storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		s.blob = b
		s.ownsBlob = true
	}

	s.store = repository.NewEventStore(s.blob,
		repository.WithCapacity(s.capacity),
		repository.WithClock(s.now),
	)
	if err := s.store.LoadInitial(ctx); err != nil {
		s.logger.Error(ctx, "event snapshot not restored, starting empty", logger.Error(err))
	}
	s.patients = repository.NewPatientRegistry(s.blob, s.defaultPatient)
	if err := s.patients.Load(ctx); err != nil {
		s.logger.Error(ctx, "patient list not restored, using default", logger.Error(err))
	}
	s.updateAdherenceGauge(s.store)

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	store := s.store
	s.worker = worker.NewInMemoryWorker(s.queue, store,
		worker.WithOnIngested(func(_ context.Context, e model.Event, _ model.Envelope) {
			s.onIngested(store, e)
		}),
		worker.WithClock(s.now),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	states, unsubscribe := s.notifier.Subscribe()
	s.bg.Add(2)
	go func() {
		defer s.bg.Done()
		s.worker.Run(runCtx)
	}()
	go func() {
		defer s.bg.Done()
		defer unsubscribe()
		s.forwardStates(runCtx, states)
	}()

	s.started = true
	s.logger.Info(ctx, "adherence service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("capacity", s.capacity),
		logger.Int("events", s.store.Len()),
		logger.String("storage", s.storage.Driver),
	)
	return nil
}

// Stop drains the queue, stops background work and closes owned storage.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping adherence service...")

	_ = s.queue.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker did not drain", logger.Error(err))
	}
	cancel()
	s.cancel()
	s.bg.Wait()

	if s.ownsBlob {
		if err := s.blob.Close(); err != nil {
			s.logger.Warn(ctx, "closing storage failed", logger.Error(err))
		}
		s.blob = nil
	}
	s.store = nil
	s.patients = nil

	s.started = false
	s.logger.Info(ctx, "adherence service stopped")
}

// SubmitPayload queues raw device bytes for decoding. It returns false when
// the service is not running or the queue is full.
func (s *Service) SubmitPayload(ctx context.Context, source string, data []byte) bool {
	metrics.RecordPayloadReceived(source)
	buf := make([]byte, len(data))
	copy(buf, data)
	return s.enqueue(ctx, model.NewPayloadEnvelope(source, buf, s.now()))
}

// InjectEvent queues a synthetic payload that skips decoding.
func (s *Service) InjectEvent(ctx context.Context, raw model.RawPayload) bool { //nolint:gocritic // hugeParam: value semantics
	raw.Format = model.FormatSynthetic
	return s.enqueue(ctx, model.NewSyntheticEnvelope("api", raw, s.now()))
}

// InjectTestEvent queues a known-good inhalation stamped now.
func (s *Service) InjectTestEvent(ctx context.Context) bool {
	return s.InjectEvent(ctx, model.RawPayload{
		TS:            model.Int64(s.now().UnixMilli()),
		Strength:      model.Float64(0.8),
		Duration:      model.Float64(1.2),
		ShakeOK:       true,
		OrientationOK: true,
	})
}

// Simulate queues n random events from the last hour and returns how many
// were accepted. n <= 0 simulates simulator.DefaultCount events.
func (s *Service) Simulate(ctx context.Context, n int) int {
	accepted := 0
	for _, raw := range s.gen.Raws(n) {
		if s.InjectEvent(ctx, raw) {
			accepted++
		}
	}
	return accepted
}

// ClearEvents removes every stored event. The store is empty even when the
// returned error reports a persistence failure.
func (s *Service) ClearEvents(ctx context.Context) error {
	store, err := s.eventStore()
	if err != nil {
		return err
	}
	err = store.Clear(ctx)
	s.updateAdherenceGauge(store)
	s.broadcast(FeedCleared, nil)
	s.logger.Info(ctx, "events cleared")
	return err
}

// Events returns up to limit newest events, classified. limit <= 0 returns all.
func (s *Service) Events(limit int) []adherence.ClassifiedEvent {
	events := s.snapshot()
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return s.engine.Classify(events)
}

// Capacity returns the store capacity.
func (s *Service) Capacity() int {
	return s.capacity
}

// AdherenceView is today's adherence.
type AdherenceView struct {
	Date          string `json:"date"`
	TodaysCount   int    `json:"todaysCount"`
	ExpectedDoses int    `json:"expectedDoses"`
	Adherence     int    `json:"adherence"`
}

// Adherence computes today's adherence.
func (s *Service) Adherence() AdherenceView {
	now := s.now()
	events := s.snapshot()
	count := s.engine.TodaysCount(events, now)
	start, _ := s.engine.DayBounds(now)
	return AdherenceView{
		Date:          start.Format(time.DateOnly),
		TodaysCount:   count,
		ExpectedDoses: s.engine.ExpectedDosesPerDay(),
		Adherence:     s.engine.AdherencePercent(events, now),
	}
}

// DailyAggregate returns correct and wrong counts per day, oldest first.
func (s *Service) DailyAggregate() []model.DailyAggregate {
	return s.engine.DailyAggregate(s.snapshot())
}

// TechniqueIssues tallies technique problems across stored events.
func (s *Service) TechniqueIssues() model.TechniqueIssues {
	return s.engine.TechniqueIssues(s.snapshot())
}

// Dashboard returns every dashboard figure computed from one snapshot.
func (s *Service) Dashboard() Dashboard {
	d := Dashboard{
		Connection: s.notifier.Current(),
		Summary:    s.engine.Summarize(s.snapshot(), s.now(), s.recentLimit),
	}
	if list := s.Patients(); len(list) > 0 {
		d.Patient = &list[0]
	}
	return d
}

// Patients lists registered patients.
func (s *Service) Patients() []model.Patient {
	reg, err := s.patientRegistry()
	if err != nil {
		return []model.Patient{s.defaultPatient}
	}
	return reg.List()
}

// AddPatient registers a patient.
func (s *Service) AddPatient(ctx context.Context, name, deviceID string) (model.Patient, error) {
	reg, err := s.patientRegistry()
	if err != nil {
		return model.Patient{}, err
	}
	return reg.Add(ctx, name, deviceID)
}

// PublishState records a transport lifecycle state verbatim.
func (s *Service) PublishState(ctx context.Context, state string) connstate.Status {
	st := s.notifier.Publish(state)
	metrics.RecordConnectionState(st.State)
	if s.logger != nil {
		s.logger.Info(ctx, "connection state changed", logger.String("state", st.State))
	}
	return st
}

// SetDevice records the connected device details.
func (s *Service) SetDevice(info *connstate.DeviceInfo) connstate.Status {
	return s.notifier.SetDevice(info)
}

// ConnectionStatus returns the current connection state.
func (s *Service) ConnectionStatus() connstate.Status {
	return s.notifier.Current()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"queueSize":     s.queueSize,
		"capacity":      s.capacity,
		"expectedDoses": s.expectedDoses,
		"storage":       s.storage.Driver,
		"connection":    s.notifier.Current().State,
		"subscribers":   s.notifier.Subscribers(),
	}
	if s.started {
		snap := s.store.Snapshot()
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["events"] = snap.Len()
		stats["version"] = snap.Version
		stats["updatedAt"] = snap.UpdatedAt
		metrics.UpdateQueueSize(s.queue.Len(context.Background()))
	}
	return stats
}

func (s *Service) enqueue(ctx context.Context, env model.Envelope) bool { //nolint:gocritic // hugeParam: value semantics
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	ok := s.queue.Enqueue(ctx, env)
	if !ok {
		s.logger.Warn(ctx, "payload rejected, queue full or closed",
			logger.String("source", env.Source),
			logger.Int("queueLength", s.queue.Len(ctx)))
	}
	return ok
}

// onIngested runs on the worker goroutine, which Stop waits for while
// holding s.mu, so it must not lock.
func (s *Service) onIngested(store *repository.EventStore, e model.Event) {
	s.updateAdherenceGauge(store)
	ev := s.engine.Classify([]model.Event{e})[0]
	s.broadcast(FeedEvent, ev)
}

func (s *Service) forwardStates(ctx context.Context, states <-chan connstate.Status) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			s.broadcast(FeedState, st)
		}
	}
}

func (s *Service) broadcast(kind string, data any) {
	if s.feed != nil {
		s.feed.Broadcast(kind, data)
	}
}

func (s *Service) updateAdherenceGauge(store *repository.EventStore) {
	events, now := store.Snapshot().Events, s.now()
	metrics.UpdateAdherence(s.engine.AdherencePercent(events, now), s.engine.TodaysCount(events, now))
}

func (s *Service) snapshot() []model.Event {
	store, err := s.eventStore()
	if err != nil {
		return []model.Event{}
	}
	return store.Snapshot().Events
}

func (s *Service) eventStore() (*repository.EventStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) patientRegistry() (*repository.PatientRegistry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.patients == nil {
		return nil, ErrNotStarted
	}
	return s.patients, nil
}
