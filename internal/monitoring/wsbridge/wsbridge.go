// Package wsbridge fans Monitoring Plane Deltas out to external UI
// consumers over WebSocket. It sits entirely on the read side of the graph
// service's projection and never publishes anything back onto the
// Monitoring Plane's topics.
package wsbridge

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket client connections and fans out graph service
// Deltas to all of them.
type Hub struct {
	logger telemetry.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

// NewHub constructs a Hub subscribed to svc's Delta stream.
func NewHub(svc *monitoring.Service, logger telemetry.Logger) *Hub {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	h := &Hub{logger: logger, clients: make(map[*websocket.Conn]bool)}
	svc.Subscribe(h.broadcast)
	return h
}

func (h *Hub) broadcast(d monitoring.Delta) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(d); err != nil {
			h.logger.Warn(context.Background(), "wsbridge write failed", "error", err)
			go h.unregister(conn)
		}
	}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and registers it as a broadcast target
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "wsbridge upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ClientCount reports the number of currently registered clients, useful
// for health checks.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
