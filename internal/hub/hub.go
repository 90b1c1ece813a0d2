// Package hub pushes live feed updates to subscribed connections. A
// single loop polls the summary store on a fixed interval and fans the
// latest batch out to every registered client, best-effort per client.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/intelverse/intelverse-go/internal/logger"
	"github.com/intelverse/intelverse-go/internal/store"
)

// Envelope is the wire shape of every hub message, client- and
// server-sent alike.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SubscribeRequest is the payload of a client "subscribe" control
// message. The preference is recorded and acknowledged; delivery stays
// broadcast-to-all.
type SubscribeRequest struct {
	Sources   []string `json:"sources"`
	TimeRange string   `json:"timeRange"`
}

// Hub owns the live connection set and the periodic update cycle.
type Hub struct {
	store    store.SummaryStore
	interval time.Duration
	batch    int

	mu      sync.Mutex
	clients map[*Client]struct{}
	push    chan struct{}
}

// New creates a hub polling the store every interval for the latest
// batch summaries.
func New(s store.SummaryStore, interval time.Duration, batch int) *Hub {
	return &Hub{
		store:    s,
		interval: interval,
		batch:    batch,
		clients:  make(map[*Client]struct{}),
		push:     make(chan struct{}, 1),
	}
}

// Register adds a connection to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logger.L.Info("client connected", "total", n)
}

// Unregister removes a connection and closes its outbound channel.
// Safe to call more than once per client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		logger.L.Info("client disconnected", "remaining", n)
	}
}

// PushNow forces an out-of-band update cycle. Coalesces with a cycle
// already pending.
func (h *Hub) PushNow() {
	select {
	case h.push <- struct{}{}:
	default:
	}
}

// Run drives the periodic update cycle until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcastFeed(ctx)
		case <-h.push:
			h.broadcastFeed(ctx)
		}
	}
}

// broadcastFeed queries the latest summaries and delivers one
// feedUpdate to every registered client. Delivery is independent per
// client: a client whose buffer is full is dropped without affecting
// the rest of the cycle.
func (h *Hub) broadcastFeed(ctx context.Context) {
	recent, err := h.store.Recent(ctx, h.batch)
	if err != nil {
		logger.L.Error("feed update query failed", "error", err)
		return
	}
	msg, err := marshalEnvelope("feedUpdate", recent)
	if err != nil {
		logger.L.Error("feed update encode failed", "error", err)
		return
	}

	h.mu.Lock()
	var stalled []*Client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if len(stalled) > 0 {
		logger.L.Warn("dropped stalled clients", "count", len(stalled))
	}
}

func marshalEnvelope(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}
