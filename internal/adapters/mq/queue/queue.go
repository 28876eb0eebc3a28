// Package queue buffers ingestion envelopes between transports and the worker.
//
// Enqueue never blocks: a full or closed queue rejects the envelope so the
// transport can report backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Envelope is the unit of work flowing through the queue.
type Envelope = model.Envelope

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an envelope. Returns false if it was not accepted.
	Enqueue(ctx context.Context, e Envelope) bool

	// Dequeue returns a channel of envelopes, closed once the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Envelope

	// Len returns the current number of queued envelopes.
	Len(ctx context.Context) int

	// Close stops accepting envelopes. Already queued envelopes remain
	// available to Dequeue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Envelope
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Envelope, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.updateGauges()
	return q
}

// Enqueue adds an envelope to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Envelope) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.items <- e:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue returns a channel that receives envelopes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Envelope {
	out := make(chan Envelope)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-q.items:
				if !ok {
					return
				}
				metrics.RecordQueueDequeue()
				q.updateGauges()
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued envelopes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.items)
}

// Capacity returns the maximum number of queued envelopes.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue from accepting envelopes.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
