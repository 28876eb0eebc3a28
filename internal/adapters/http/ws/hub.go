// Package ws serves the WebSocket endpoints: the device bridge socket that
// feeds payloads into the pipeline, and the live feed that pushes state and
// event updates to dashboards.
package ws

import (
	"context"
	"sync"

	"github.com/smartinhale/adherence/pkg/logger"
	"github.com/smartinhale/adherence/pkg/metrics"
)

// Message types pushed on the feed. The ping and pong types are the
// client keepalive exchange.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

const feedEndpoint = "feed"

// Message is one feed frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of feed clients and broadcasts messages to them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        logger.Logger
}

// NewHub creates a Hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger.Named("ws.hub"),
	}
}

// Broadcast queues a message for every client. When the hub is backed up
// the message is dropped.
func (h *Hub) Broadcast(kind string, data any) {
	select {
	case h.broadcast <- Message{Type: kind, Data: data}:
	default:
		h.log.Warn(context.Background(), "feed backlog full, message dropped", logger.String("type", kind))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		// Lifecycle events first so a broadcast never races a registration.
		select {
		case c := <-h.register:
			h.add(ctx, c)
			continue
		case c := <-h.unregister:
			h.remove(ctx, c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll(ctx)
			close(h.done)
			return
		case c := <-h.register:
			h.add(ctx, c)
		case c := <-h.unregister:
			h.remove(ctx, c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// join registers c, reporting false when the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.AddWebSocketClients(feedEndpoint, 1)
	h.log.Info(ctx, "feed client connected", logger.Int("total_clients", n))
}

func (h *Hub) remove(ctx context.Context, c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.detach()
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.AddWebSocketClients(feedEndpoint, -1)
		h.log.Info(ctx, "feed client disconnected", logger.Int("total_clients", n))
	}
}

func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client; drop it rather than block the hub.
			delete(h.clients, c)
			c.detach()
			metrics.AddWebSocketClients(feedEndpoint, -1)
		}
	}
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		c.detach()
	}
	h.mu.Unlock()
	metrics.AddWebSocketClients(feedEndpoint, -n)
	h.log.Info(ctx, "feed hub stopped", logger.Int("closed_clients", n))
}
