// Package notify pushes committed queue events to connected doctor clients
// over websockets. Delivery is best-effort per connection; a client that
// reconnects re-syncs from GetStatus and live-follows from here.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/opdflow/clinic-queue-platform/internal/events"
	"github.com/opdflow/clinic-queue-platform/internal/identity"
	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

// Frame is the wire shape pushed to subscribers.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans queue events out to the doctor's open sockets. It implements
// events.DeliveryHandler.
type Hub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the CORS layer; the socket carries its
			// own JWT.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: map[string]map[*websocket.Conn]struct{}{},
	}
}

// Subscribe upgrades the request and registers the doctor's connection until
// the peer closes it.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := identity.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "doctor_id", doctorID)
		return
	}

	h.add(doctorID, conn)
	h.logger.Debug("queue feed subscribed", "doctor_id", doctorID)

	// Drain control frames; any read error means the peer went away.
	go func() {
		defer func() {
			h.remove(doctorID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Handle broadcasts one outbox entry to the doctor's subscribers. An event
// with no open sockets still counts as handled: reconnecting clients recover
// state from GetStatus, not from replay.
func (h *Hub) Handle(ctx context.Context, entry events.OutboxEntry) error {
	frame, err := json.Marshal(Frame{Type: entry.Type, Payload: entry.Payload})
	if err != nil {
		return err
	}

	for _, conn := range h.connsFor(entry.DoctorID) {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("dropping dead queue feed connection", "doctor_id", entry.DoctorID, "error", err)
			h.remove(entry.DoctorID, conn)
			_ = conn.Close()
		}
	}
	return nil
}

// Subscribers reports the number of open connections for a doctor.
func (h *Hub) Subscribers(doctorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[doctorID])
}

func (h *Hub) add(doctorID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[doctorID] == nil {
		h.subs[doctorID] = map[*websocket.Conn]struct{}{}
	}
	h.subs[doctorID][conn] = struct{}{}
}

func (h *Hub) remove(doctorID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns := h.subs[doctorID]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, doctorID)
		}
	}
}

func (h *Hub) connsFor(doctorID string) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(h.subs[doctorID]))
	for conn := range h.subs[doctorID] {
		conns = append(conns, conn)
	}
	return conns
}
