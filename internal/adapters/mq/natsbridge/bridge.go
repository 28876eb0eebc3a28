// Package natsbridge feeds payloads and lifecycle states published on a
// NATS bus into the ingestion pipeline.
//
// Subjects, for prefix p:
//   - p.payload carries one raw payload per message (JSON or binary)
//   - p.state carries a lifecycle state string, published verbatim
package natsbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smartinhale/adherence/internal/domain/connstate"
	"github.com/smartinhale/adherence/pkg/logger"
)

const (
	// Source tags envelopes that arrived over the bus.
	Source = "nats"

	defaultPrefix = "smartinhale"
)

// Sink is what the bridge feeds.
type Sink interface {
	SubmitPayload(ctx context.Context, source string, data []byte) bool
	PublishState(ctx context.Context, state string) connstate.Status
}

// Bridge owns one NATS connection and its two subscriptions.
type Bridge struct {
	url           string
	prefix        string
	name          string
	maxReconnects int
	reconnectWait time.Duration
	sink          Sink
	log           logger.Logger

	mu   sync.Mutex
	nc   *nats.Conn
	subs []*nats.Subscription
}

// New creates a Bridge for the server at url. Call Start to connect.
func New(url string, sink Sink, opts ...Option) *Bridge {
	b := &Bridge{
		url:           url,
		prefix:        defaultPrefix,
		name:          "smartinhale-adherence",
		maxReconnects: 10,
		reconnectWait: time.Second,
		sink:          sink,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Named("natsbridge")
	}
	return b
}

// PayloadSubject returns the subject carrying raw payloads.
func (b *Bridge) PayloadSubject() string { return b.prefix + ".payload" }

// StateSubject returns the subject carrying lifecycle states.
func (b *Bridge) StateSubject() string { return b.prefix + ".state" }

// Start connects and subscribes. The first connect must succeed; later
// disconnects are retried. Messages are handled until Close.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc != nil {
		return nil
	}

	// Handlers outlive the caller's context.
	runCtx := context.WithoutCancel(ctx)

	nc, err := nats.Connect(b.url,
		nats.Name(b.name),
		nats.MaxReconnects(b.maxReconnects),
		nats.ReconnectWait(b.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.log.Warn(runCtx, "bus disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			b.log.Info(runCtx, "bus reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, b.url, err)
	}

	payloadSub, err := nc.Subscribe(b.PayloadSubject(), func(m *nats.Msg) {
		if !b.sink.SubmitPayload(runCtx, Source, m.Data) {
			b.log.Warn(runCtx, "payload rejected, queue full", logger.Int("bytes", len(m.Data)))
		}
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("%w: %s: %v", ErrSubscribe, b.PayloadSubject(), err)
	}

	stateSub, err := nc.Subscribe(b.StateSubject(), func(m *nats.Msg) {
		b.sink.PublishState(runCtx, string(m.Data))
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("%w: %s: %v", ErrSubscribe, b.StateSubject(), err)
	}

	b.nc = nc
	b.subs = []*nats.Subscription{payloadSub, stateSub}
	b.log.Info(ctx, "bus bridge started",
		logger.String("url", b.url),
		logger.String("payload_subject", b.PayloadSubject()),
		logger.String("state_subject", b.StateSubject()))
	return nil
}

// Close drains the subscriptions and closes the connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc == nil {
		return nil
	}
	err := b.nc.Drain()
	b.nc = nil
	b.subs = nil
	return err
}
