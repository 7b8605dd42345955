// Package gateway implements the session layer: the WebSocket upgrade,
// per-connection read/write pumps, authentication, rate limiting, and
// routing of decoded client messages into room.Room calls.
package gateway

import (
	"sync"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/logging"
	"github.com/duskcourt/onuw/internal/metrics"
)

// Hub tracks every live session, keyed by (roomCode, playerID), and is
// the concrete Outbox/Pusher target every room's messages fan out
// through. One Hub serves the whole process.
type Hub struct {
	log *logging.Logger
	m   *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]map[string]*Session // roomCode -> playerID -> session
}

// NewHub builds an empty session registry. m may be nil in tests that
// don't care about exported metrics.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		log:      logging.Get(),
		m:        m,
		sessions: map[string]map[string]*Session{},
	}
}

// Register binds a session under (roomCode, playerID), replacing any
// prior session for that pair (a reconnect rebinding a new channel).
func (h *Hub) Register(roomCode, playerID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[roomCode] == nil {
		h.sessions[roomCode] = map[string]*Session{}
	}
	_, replaced := h.sessions[roomCode][playerID]
	h.sessions[roomCode][playerID] = s
	if !replaced && h.m != nil {
		h.m.ActiveConnections.Inc()
	}
	h.log.Debug("session registered", zap.String("room", roomCode), zap.String("player", playerID), zap.Int("count", len(h.sessions[roomCode])))
}

// Unregister removes a session only if it is still the one registered
// (a late unregister from a since-replaced session is a no-op).
func (h *Hub) Unregister(roomCode, playerID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.sessions[roomCode]; ok {
		if m[playerID] == s {
			delete(m, playerID)
			if h.m != nil {
				h.m.ActiveConnections.Dec()
			}
		}
		if len(m) == 0 {
			delete(h.sessions, roomCode)
		}
	}
}

// RoomOutbox returns a room.Outbox scoped to one room code.
func (h *Hub) RoomOutbox(roomCode string) *RoomOutbox {
	return &RoomOutbox{hub: h, roomCode: roomCode}
}

// RoomOutbox implements room.Outbox by fanning out through the Hub's
// session registry for one room code.
type RoomOutbox struct {
	hub      *Hub
	roomCode string
}

// Unicast sends to one player's session, silently dropping if that
// player has no live channel (disconnected or AI-controlled).
func (o *RoomOutbox) Unicast(roomPlayerID string, envelopeType string, payload interface{}) {
	o.hub.mu.RLock()
	s, ok := o.hub.sessions[o.roomCode][roomPlayerID]
	o.hub.mu.RUnlock()
	if !ok {
		return
	}
	s.send(envelopeType, payload)
}

// Broadcast sends to every live session in the room.
func (o *RoomOutbox) Broadcast(envelopeType string, payload interface{}) {
	o.hub.mu.RLock()
	targets := make([]*Session, 0, len(o.hub.sessions[o.roomCode]))
	for _, s := range o.hub.sessions[o.roomCode] {
		targets = append(targets, s)
	}
	o.hub.mu.RUnlock()
	for _, s := range targets {
		s.send(envelopeType, payload)
	}
}

func (h *Hub) sessionFor(roomCode, playerID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[roomCode][playerID]
	return s, ok
}
