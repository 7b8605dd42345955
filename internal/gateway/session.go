package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/logging"
	"github.com/duskcourt/onuw/internal/metrics"
	"github.com/duskcourt/onuw/internal/protocol"
	"github.com/duskcourt/onuw/internal/ratelimit"
)

// wsConnection is the subset of *websocket.Conn a Session needs, kept
// narrow so tests can fake it.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Router processes one decoded inbound message for a session. Implemented
// by the Gateway; kept as an interface here so Session has no dependency
// on the room/roommgr/reconnect packages directly.
type Router interface {
	Route(s *Session, env protocol.Envelope)
	HandleDisconnect(s *Session)
}

// Session is one player's live WebSocket connection, bound to exactly one
// room and one stable external player id for its lifetime.
type Session struct {
	conn   wsConnection
	router Router
	limit  *ratelimit.Limiter
	codec  protocol.Codec
	log    *logging.Logger
	m      *metrics.Metrics

	connID     string
	RoomCode   string
	PlayerID   string
	PlayerName string

	sendCh     chan []byte // normal traffic; dropped on back-pressure
	priorityCh chan []byte // actionRequired/error/phaseChange; dropped last
	done       chan struct{}

	closeOnce closeOnceGuard
	pongWait  time.Duration
}

// closeOnceGuard runs its function exactly once, safe to call
// concurrently from the read pump's own exit and a back-pressure drop
// observed on a different goroutine (a room broadcasting through the
// Hub).
type closeOnceGuard struct {
	once sync.Once
}

func (g *closeOnceGuard) do(fn func()) {
	g.once.Do(fn)
}

// NewSession wraps a freshly upgraded connection. RoomCode/PlayerID are
// unset until the client's authenticate/joinRoom (or createRoom)
// messages bind them. Call Run to start the pumps; Run blocks until the
// connection closes.
func NewSession(conn wsConnection, router Router, limit *ratelimit.Limiter, pongWait time.Duration) *Session {
	return NewSessionWithMetrics(conn, router, limit, pongWait, nil)
}

// NewSessionWithMetrics is NewSession with an explicit metrics bundle, used
// by the server entrypoint so rate-limit rejections are observable; tests
// can keep using NewSession's nil-metrics default.
func NewSessionWithMetrics(conn wsConnection, router Router, limit *ratelimit.Limiter, pongWait time.Duration, m *metrics.Metrics) *Session {
	return &Session{
		conn:       conn,
		router:     router,
		limit:      limit,
		codec:      protocol.JSONCodec{},
		log:        logging.Get(),
		m:          m,
		connID:     uuid.NewString(),
		sendCh:     make(chan []byte, 32),
		priorityCh: make(chan []byte, 16),
		done:       make(chan struct{}),
		pongWait:   pongWait,
	}
}

// Bind records the room/player this session has authenticated and joined
// as, used for rate-limit keys and Hub lookups from then on.
func (s *Session) Bind(roomCode, playerID string) {
	s.RoomCode = roomCode
	s.PlayerID = playerID
	s.log = logging.Get().With(zap.String("room", roomCode), zap.String("player", playerID))
}

// send encodes and queues an outbound envelope, prioritizing phase/error/
// action traffic over routine broadcasts. A full channel is treated the
// same as a physically lost connection: the message is dropped and the
// session is torn down through the same disconnect path a read error
// takes, so the reconnection manager starts a grace timer for this seat
// instead of the room silently stalling on an unreachable client.
func (s *Session) send(envelopeType string, payload interface{}) {
	data, err := s.codec.Encode(envelopeType, payload)
	if err != nil {
		s.log.Error("failed to encode envelope", zap.Error(err))
		return
	}

	ch := s.sendCh
	if isPriority(envelopeType) {
		ch = s.priorityCh
	}
	select {
	case ch <- data:
	default:
		s.log.Warn("send channel full, dropping message and disconnecting", zap.String("type", envelopeType))
		s.disconnect()
	}
}

// disconnect tears the session down exactly once: closes done (stopping
// writePump), notifies the router so reconnection grace can start, and
// closes the underlying connection (stopping readPump, if still running).
func (s *Session) disconnect() {
	s.closeOnce.do(func() {
		close(s.done)
		s.router.HandleDisconnect(s)
		s.conn.Close()
	})
}

func isPriority(envelopeType string) bool {
	switch envelopeType {
	case protocol.TypeError, protocol.TypePhaseChange, protocol.TypeActionRequired,
		protocol.TypeGameEnd, protocol.TypeElimination:
		return true
	default:
		return false
	}
}

// Run starts the read and write pumps and blocks until either exits.
func (s *Session) Run(maxMessageBytes int64, pingInterval time.Duration) {
	go s.writePump(pingInterval)
	s.readPump(maxMessageBytes)
}

func (s *Session) readPump(maxMessageBytes int64) {
	defer s.disconnect()

	s.conn.SetReadLimit(maxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		if s.limit != nil && !s.limit.Allow(context.Background(), s.connID) {
			if s.m != nil {
				s.m.RateLimitRejections.WithLabelValues("perConnection").Inc()
			}
			s.send(protocol.TypeError, protocol.ErrorPayload{Code: apperr.CodeRateLimited, Message: "too many messages"})
			continue
		}

		env, err := s.codec.Decode(data)
		if err != nil {
			s.send(protocol.TypeError, protocol.ErrorPayload{Code: "invalidProtocol", Message: "malformed message"})
			continue
		}
		s.router.Route(s, env)
	}
}

func (s *Session) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	const writeWait = 10 * time.Second
	for {
		select {
		case msg, ok := <-s.priorityCh:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case msg, ok := <-s.sendCh:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
