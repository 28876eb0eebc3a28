// Package worker drains the ingestion queue. Exactly one worker runs, so
// payloads are decoded, normalized and stored strictly one at a time in
// arrival order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smartinhale/adherence/internal/domain/codec"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/internal/domain/normalize"
	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// Queue defines how the worker receives envelopes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Envelope
}

// Store receives normalized events.
type Store interface {
	Ingest(ctx context.Context, e model.Event) error
}

// IngestedFunc is called after an event has been stored.
type IngestedFunc func(ctx context.Context, e model.Event, env model.Envelope)

// Worker processes envelopes until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown waits for Run to drain the queue, forcing it to stop when
	// ctx expires first.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	store      Store
	name       string
	onIngested IngestedFunc
	now        func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a worker reading from q and writing to store.
func NewInMemoryWorker(q Queue, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		store:    store,
		name:     "ingest",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("worker." + w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	metrics.UpdateWorkerActive(true)
	defer func() {
		metrics.UpdateWorkerActive(false)
		close(w.done)
	}()

	envelopes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			if _, err := w.Process(ctx, env); err != nil {
				w.logger.Warn(ctx, "payload dropped",
					logger.String("envelope_id", env.ID.String()),
					logger.String("source", env.Source),
					logger.Int("bytes", len(env.Data)),
					logger.Error(err))
			}
		}
	}
}

// Shutdown waits for Run to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	w.logger.Warn(ctx, "shutdown timed out, stopping with envelopes pending")
	return fmt.Errorf("shutdown timed out: %w", ctx.Err())
}

// Process runs one envelope through decode, normalize and store. Decode
// failures drop the envelope. A store error is returned but the event has
// still been accepted in memory.
func (w *InMemoryWorker) Process(ctx context.Context, env model.Envelope) (model.Event, error) { //nolint:gocritic // hugeParam: envelopes travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var raw model.RawPayload
	if env.Synthetic != nil {
		raw = *env.Synthetic
	} else {
		var err error
		raw, err = codec.Decode(env.Data)
		if err != nil {
			metrics.RecordDecodeFailure(codec.Reason(err))
			return model.Event{}, fmt.Errorf("decode: %w", err)
		}
	}

	received := env.ReceivedAt
	if received.IsZero() {
		received = w.now()
	}
	event := normalize.Normalize(raw, received)

	storeErr := w.store.Ingest(ctx, event)
	metrics.RecordEventIngested(string(raw.Format))
	metrics.RecordIngestLatency(float64(time.Since(start).Microseconds()) / 1000)
	if storeErr != nil {
		metrics.RecordWorkerError()
	}

	w.logger.Debug(ctx, "event ingested",
		logger.String("source", env.Source),
		logger.String("format", string(raw.Format)),
		logger.Int64("ts", event.TS),
		logger.Float64("strength", event.Strength))

	if w.onIngested != nil {
		w.onIngested(ctx, event, env)
	}
	if storeErr != nil {
		return event, fmt.Errorf("store: %w", storeErr)
	}
	return event, nil
}
