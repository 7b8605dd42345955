// Package roommgr implements the room directory: creation with unique
// short join codes, lookup, and periodic reaping of dead rooms.
package roommgr

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/logging"
	"github.com/duskcourt/onuw/internal/metrics"
	"github.com/duskcourt/onuw/internal/room"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I

// Manager owns the live room directory. One Manager serves the whole
// process; Room actors still serialize their own membership mutations.
type Manager struct {
	log           *logging.Logger
	mu            sync.RWMutex
	rooms         map[string]*room.Room
	maxRooms      int
	roomTimeout   time.Duration
	createdAt     map[string]time.Time
	outboxFactory func(roomCode string) room.Outbox
	m             *metrics.Metrics
}

// New builds a Manager capped at maxRooms concurrently live rooms.
// roomTimeout is the grace window a WAITING room with zero connected
// humans is allowed before the reaper destroys it. outboxFactory builds
// the fan-out port for a freshly allocated room code — the code itself
// is only known once CreateRoom has generated it, so the gateway's Hub
// is wired in as a factory rather than a pre-built Outbox. m may be nil
// in tests that don't care about exported metrics.
func New(maxRooms int, roomTimeout time.Duration, outboxFactory func(roomCode string) room.Outbox, m *metrics.Metrics) *Manager {
	return &Manager{
		log:           logging.Get(),
		rooms:         map[string]*room.Room{},
		createdAt:     map[string]time.Time{},
		maxRooms:      maxRooms,
		roomTimeout:   roomTimeout,
		outboxFactory: outboxFactory,
		m:             m,
	}
}

// CreateRoom allocates a unique short code and a new room actor, or fails
// once the directory is at maxRooms.
func (m *Manager) CreateRoom(cfg room.Config, recon room.DisconnectNotifier) (*room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rooms) >= m.maxRooms {
		return nil, apperr.New(apperr.KindState, apperr.CodeRoomFull, "room directory is at capacity")
	}

	code, err := m.generateCode()
	if err != nil {
		return nil, err
	}

	r := room.NewWithMetrics(code, cfg, m.outboxFactory(code), recon, m.m)
	m.rooms[code] = r
	m.createdAt[code] = time.Now()
	if m.m != nil {
		m.m.ActiveRooms.Set(float64(len(m.rooms)))
	}
	m.log.Info("room created", zap.String("room", code))
	return r, nil
}

// generateCode retries a bounded number of times against collisions in
// the live directory; callers must already hold m.mu.
func (m *Manager) generateCode() (string, error) {
	const maxAttempts = 20
	for attempt := 0; attempt < maxAttempts; attempt++ {
		length := 4
		if attempt > 10 {
			length = 6
		}
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}
		if _, exists := m.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", apperr.New(apperr.KindInternal, apperr.CodeInternalError, "could not allocate a unique room code")
}

func randomCode(length int) (string, error) {
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// RefreshParticipants updates the exported per-room participant gauge,
// called by the gateway after any membership-changing room operation.
func (m *Manager) RefreshParticipants(code string, count int) {
	if m.m != nil {
		m.m.RoomParticipants.WithLabelValues(code).Set(float64(count))
	}
}

// Get returns the room with code, if live.
func (m *Manager) Get(code string) (*room.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// Count returns the number of rooms currently tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// FindPlayerRoom scans the live directory for the room playerID currently
// belongs to, used to rejoin a session that lost its room code (a page
// refresh, a new device) without requiring the client to remember it.
func (m *Manager) FindPlayerRoom(playerID string) (*room.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.HasPlayer(playerID) {
			return r, true
		}
	}
	return nil, false
}

// ListPublicWaiting returns every non-private room still in WAITING, for
// a lobby browser to offer as joinable.
func (m *Manager) ListPublicWaiting() []*room.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Status() == room.StatusWaiting && !r.IsPrivate() {
			out = append(out, r)
		}
	}
	return out
}

// Reap destroys every room that is ENDED/CLOSED, or WAITING with zero
// connected humans past roomTimeout. PLAYING rooms are never reaped here;
// the engine itself drives their termination. Intended to be called on a
// ticker from the server's main loop.
func (m *Manager) Reap(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for code, r := range m.rooms {
		status := r.Status()
		switch status {
		case room.StatusEnded, room.StatusClosed:
			m.destroyLocked(code, r)
		case room.StatusWaiting:
			if now.Sub(m.createdAt[code]) > m.roomTimeout && !r.HasConnectedHuman() {
				m.destroyLocked(code, r)
			}
		}
	}
}

func (m *Manager) destroyLocked(code string, r *room.Room) {
	r.Close()
	delete(m.rooms, code)
	delete(m.createdAt, code)
	if m.m != nil {
		m.m.ActiveRooms.Set(float64(len(m.rooms)))
		m.m.RoomParticipants.DeleteLabelValues(code)
	}
	m.log.Info("room reaped", zap.String("room", code))
}

// RunReaper blocks, reaping on interval until stop is closed. Meant to be
// launched as its own goroutine from cmd/server.
func (m *Manager) RunReaper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			m.Reap(now)
		case <-stop:
			return
		}
	}
}

// TakeOverWithAI implements reconnect.RoomGames by looking roomCode up in
// the directory and delegating to the room's own seat takeover.
func (m *Manager) TakeOverWithAI(roomCode, playerID string) bool {
	r, ok := m.Get(roomCode)
	if !ok {
		return false
	}
	return r.TakeOverSeatWithAI(playerID)
}
