// Package push fans session events out to websocket viewers and accepts
// typed commands from them.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/observability"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

// Dispatcher is the session surface viewers may drive.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
	View() domain.SessionView
	Disconnect(ctx context.Context, identity string) error
}

// Hub keeps the set of connected viewers and broadcasts events to them.
// It implements ports.EventPublisher; Publish never blocks.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	metrics    *observability.Metrics

	mu     sync.RWMutex
	count  int
	closed chan struct{}
}

// NewHub creates a hub. Run must be started before viewers connect.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    metrics,
		closed:     make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.closed)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount(len(h.clients))
			h.metrics.ViewerConnected()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.enqueue(msg) {
					slog.Warn("push: slow viewer dropped")
					h.drop(c)
				}
			}
		}
	}
}

// Publish encodes the event and queues it for every viewer. When the
// queue is full the event is dropped rather than stalling the session.
func (h *Hub) Publish(e domain.Event) {
	msg, err := json.Marshal(domain.Envelope(e, time.Now()))
	if err != nil {
		slog.Error("push: encode event", "type", e.Type(), "err", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("push: broadcast queue full, event dropped", "type", e.Type())
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// drop removes a client and signals its pumps. Run goroutine only.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.done)
	h.setCount(len(h.clients))
	h.metrics.ViewerDisconnected()
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// join registers a client unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.closed:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.closed:
	}
}
