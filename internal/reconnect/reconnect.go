// Package reconnect implements the reconnection manager: per-seat grace
// timers, AI takeover on expiry, and state re-delivery on return, the
// grace-timer-with-cancel-on-return idiom grounded on the video
// conferencing transport hub's room cleanup timer.
package reconnect

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/logging"
)

// Status is the lifecycle of one tracked disconnect.
type Status string

const (
	StatusGrace       Status = "GRACE"
	StatusAITakenOver Status = "AI_TAKEN_OVER"
	StatusReconnected Status = "RECONNECTED"
	StatusExpired     Status = "EXPIRED"
)

// Entry is one disconnected player's tracked state.
type Entry struct {
	RoomCode       string
	PlayerID       string
	DisplayName    string
	Seat           string
	DisconnectedAt time.Time
	Status         Status
}

// RoomGames is the reconnection manager's hook back into game state: it
// needs to swap a seat's provider to AI on expiry and resolve any prompt
// that seat was mid-answering.
type RoomGames interface {
	// TakeOverWithAI swaps roomCode/playerID's decision provider to an
	// AI provider and immediately answers any pending prompt for that
	// seat with the AI's decision. Returns false if the room or player
	// no longer exists (already ended, or never bound to a seat).
	TakeOverWithAI(roomCode, playerID string) bool
}

type key struct {
	roomCode string
	playerID string
}

// Manager tracks one grace timer per disconnected (room, player) pair.
// A per-room cap limits concurrent grace-period disconnects; once a
// room is at capacity, further disconnects take over immediately.
type Manager struct {
	log       *logging.Logger
	games     RoomGames
	grace     time.Duration
	perRoomCap int

	mu      sync.Mutex
	entries map[key]*Entry
	timers  map[key]*time.Timer
	byRoom  map[string]int // count of entries currently in StatusGrace, per room
}

// New builds a Manager with the configured grace period and per-room
// concurrent-grace-disconnect cap.
func New(games RoomGames, grace time.Duration, perRoomCap int) *Manager {
	return &Manager{
		log:        logging.Get(),
		games:      games,
		grace:      grace,
		perRoomCap: perRoomCap,
		entries:    map[key]*Entry{},
		timers:     map[key]*time.Timer{},
		byRoom:     map[string]int{},
	}
}

// NotifyDisconnect implements room.DisconnectNotifier. It starts a grace
// timer for the player, or triggers immediate AI takeover if the room is
// already at its concurrent-grace cap.
func (m *Manager) NotifyDisconnect(roomCode, playerID string) {
	m.mu.Lock()

	k := key{roomCode, playerID}
	if existing, ok := m.timers[k]; ok {
		existing.Stop()
		delete(m.timers, k)
	}

	if m.byRoom[roomCode] >= m.perRoomCap {
		m.mu.Unlock()
		m.log.Info("grace cap reached, immediate AI takeover",
			zap.String("room", roomCode), zap.String("player", playerID))
		m.takeOver(roomCode, playerID)
		return
	}

	entry := &Entry{
		RoomCode:       roomCode,
		PlayerID:       playerID,
		DisconnectedAt: time.Now(),
		Status:         StatusGrace,
	}
	m.entries[k] = entry
	m.byRoom[roomCode]++

	timer := time.AfterFunc(m.grace, func() { m.expire(roomCode, playerID) })
	m.timers[k] = timer
	m.mu.Unlock()
}

// NotifyReconnect cancels a pending grace timer (or marks a return after
// AI takeover) for playerID in roomCode. Returns true if an entry existed.
func (m *Manager) NotifyReconnect(roomCode, playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{roomCode, playerID}
	entry, ok := m.entries[k]
	if !ok {
		return false
	}
	if timer, ok := m.timers[k]; ok {
		timer.Stop()
		delete(m.timers, k)
	}
	if entry.Status == StatusGrace {
		m.byRoom[roomCode]--
	}
	entry.Status = StatusReconnected
	delete(m.entries, k)
	return true
}

func (m *Manager) expire(roomCode, playerID string) {
	m.mu.Lock()
	k := key{roomCode, playerID}
	entry, ok := m.entries[k]
	if !ok || entry.Status != StatusGrace {
		m.mu.Unlock()
		return
	}
	m.byRoom[roomCode]--
	entry.Status = StatusExpired
	delete(m.timers, k)
	m.mu.Unlock()

	m.takeOver(roomCode, playerID)
}

func (m *Manager) takeOver(roomCode, playerID string) {
	if !m.games.TakeOverWithAI(roomCode, playerID) {
		m.log.Warn("AI takeover target no longer exists",
			zap.String("room", roomCode), zap.String("player", playerID))
		return
	}

	m.mu.Lock()
	k := key{roomCode, playerID}
	if entry, ok := m.entries[k]; ok {
		entry.Status = StatusAITakenOver
	} else {
		m.entries[k] = &Entry{RoomCode: roomCode, PlayerID: playerID, Status: StatusAITakenOver, DisconnectedAt: time.Now()}
	}
	m.mu.Unlock()

	m.log.Info("player AI-controlled after grace expiry",
		zap.String("room", roomCode), zap.String("player", playerID))
}

// StatusOf reports the tracked status for a (room, player) pair, or
// ("", false) if nothing is tracked.
func (m *Manager) StatusOf(roomCode, playerID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key{roomCode, playerID}]
	if !ok {
		return "", false
	}
	return entry.Status, true
}
