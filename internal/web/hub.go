package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/JonMunkholm/menas/internal/eventbus"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// Hub fans conformance events out to websocket clients. It subscribes to
// the event bus; clients that fall behind are disconnected.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	origins []string
	logger  *slog.Logger
}

type client struct {
	dataset string // empty receives every dataset
	send    chan eventbus.Event
}

// NewHub creates an empty hub. originPatterns are the cross-origin hosts
// allowed to connect, in the websocket package's pattern syntax; without any
// only same-origin clients are accepted.
func NewHub(logger *slog.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		origins: originPatterns,
		logger:  logger.With("component", "hub"),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleEvent queues evt for every interested client. It never blocks.
func (h *Hub) HandleEvent(_ context.Context, evt eventbus.Event) error {
	dataset := ""
	if upd, err := eventbus.DecodeConformanceUpdated(evt); err == nil {
		dataset = upd.Dataset
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.dataset != "" && c.dataset != dataset {
			continue
		}
		select {
		case c.send <- evt:
		default:
			h.logger.Warn("dropping slow websocket client", "dataset", c.dataset)
			h.drop(c)
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}

// ServeHTTP upgrades to a websocket and streams events until the client
// goes away. The optional dataset query parameter filters events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	c := &client{
		dataset: r.URL.Query().Get("dataset"),
		send:    make(chan eventbus.Event, clientBuffer),
	}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	// Clients only listen; CloseRead handles control frames.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "connection dropped")
				return
			}
			if err := h.write(ctx, conn, evt); err != nil {
				h.logger.Debug("websocket write", "error", err)
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, evt eventbus.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, evt)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with mu held.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}
