// Package room implements the single-goroutine room actor: one owning
// goroutine per room serializes every membership mutation, while a
// per-game "runner" goroutine drives the engine's own phase sequence and
// reports back into the room, so a long-running night or vote never
// blocks reconnection or lobby commands for other rooms — or, during
// DAY, for this one.
package room

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/engine"
	"github.com/duskcourt/onuw/internal/logging"
	"github.com/duskcourt/onuw/internal/metrics"
	"github.com/duskcourt/onuw/internal/roles"
	"github.com/duskcourt/onuw/internal/view"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusStarting Status = "STARTING"
	StatusPlaying  Status = "PLAYING"
	StatusEnded    Status = "ENDED"
	StatusClosed   Status = "CLOSED"
)

// Member is one room-facing player record. RoomPlayerID is the external,
// stable identifier; Seat is only populated once the game has started.
type Member struct {
	RoomPlayerID string
	Name         string
	IsAI         bool // currently AI-controlled (join-time AI, or a human seat taken over at grace expiry)
	OriginallyAI bool // host-added/filler AI seat; never eligible for human rebind on reconnect
	IsReady      bool
	IsConnected  bool
	Seat         engine.SeatID
}

// Config is the room-facing configuration, validated against
// engine.Config's invariants at Start.
type Config struct {
	MinPlayers      int
	MaxPlayers      int
	Roles           []roles.Role
	TimeoutProfile  string
	IsPrivate       bool
	AllowSpectators bool
}

// Outbox is the room's one-way fan-out port to connected clients. It is
// implemented by the gateway; the room never touches a websocket
// directly. Unicast to a disconnected/AI member is a silent no-op.
type Outbox interface {
	Unicast(roomPlayerID string, envelopeType string, payload interface{})
	Broadcast(envelopeType string, payload interface{})
}

// DisconnectNotifier is the room's hook into the reconnection manager,
// invoked whenever a channel is lost during PLAYING (explicit close or a
// back-pressure drop).
type DisconnectNotifier interface {
	NotifyDisconnect(roomCode string, playerID string)
}

type cmdRequest struct {
	fn   func() (interface{}, error)
	resp chan cmdResult
}

type cmdResult struct {
	val interface{}
	err error
}

// Room owns one game session's membership and lifecycle.
type Room struct {
	Code   string
	log    *logging.Logger
	outbox Outbox
	recon  DisconnectNotifier

	cmdCh chan cmdRequest
	done  chan struct{}

	// Fields below are only ever touched from the actor goroutine (loop)
	// once constructed; no mutex needed.
	hostID    string
	config    Config
	members   []*Member // join order; index+1 is this member's future seat
	status    Status
	game      *engine.Game
	humans    map[engine.SeatID]*decision.HumanProvider
	gameDoneC chan struct{}
	m         *metrics.Metrics
}

// New builds a room in WAITING with the given code.
func New(code string, cfg Config, outbox Outbox, recon DisconnectNotifier) *Room {
	return NewWithMetrics(code, cfg, outbox, recon, nil)
}

// NewWithMetrics is New with an explicit metrics bundle, used by the room
// directory so night-phase duration and decision latency are observable;
// tests can keep using New's nil-metrics default.
func NewWithMetrics(code string, cfg Config, outbox Outbox, recon DisconnectNotifier, m *metrics.Metrics) *Room {
	r := &Room{
		Code:    code,
		log:     logging.Get().With(zap.String("room", code)),
		outbox:  outbox,
		recon:   recon,
		cmdCh:   make(chan cmdRequest),
		done:    make(chan struct{}),
		config:  cfg,
		status:  StatusWaiting,
		humans:  map[engine.SeatID]*decision.HumanProvider{},
		m:       m,
	}
	go r.loop()
	return r
}

func (r *Room) loop() {
	for {
		select {
		case req := <-r.cmdCh:
			val, err := r.safeExec(req.fn)
			req.resp <- cmdResult{val: val, err: err}
		case <-r.done:
			return
		}
	}
}

func (r *Room) safeExec(fn func() (interface{}, error)) (val interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("room actor recovered a panic", zap.Any("panic", rec))
			err = apperr.New(apperr.KindInternal, apperr.CodeInternalError, fmt.Sprintf("internal error: %v", rec))
		}
	}()
	return fn()
}

func (r *Room) dispatch(fn func() (interface{}, error)) (interface{}, error) {
	req := cmdRequest{fn: fn, resp: make(chan cmdResult, 1)}
	select {
	case r.cmdCh <- req:
	case <-r.done:
		return nil, apperr.New(apperr.KindTransport, apperr.CodeRoomNotFound, "room is closed")
	}
	select {
	case res := <-req.resp:
		return res.val, res.err
	case <-r.done:
		return nil, apperr.New(apperr.KindTransport, apperr.CodeRoomNotFound, "room is closed")
	}
}

// Close stops the room actor permanently (used by the reaper).
func (r *Room) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// Status returns the room's current lifecycle status, or StatusClosed once
// Close has stopped the room actor.
func (r *Room) Status() Status {
	v, _ := r.dispatch(func() (interface{}, error) { return r.status, nil })
	s, ok := v.(Status)
	if !ok {
		return StatusClosed
	}
	return s
}

// HasConnectedHuman reports whether any non-AI member currently has a
// live channel, used by the reaper to decide whether an empty WAITING
// room has genuinely gone idle.
func (r *Room) HasConnectedHuman() bool {
	v, _ := r.dispatch(func() (interface{}, error) {
		for _, m := range r.members {
			if !m.IsAI && m.IsConnected {
				return true, nil
			}
		}
		return false, nil
	})
	b, _ := v.(bool)
	return b
}

// HasPlayer reports whether playerID is currently a member of this room,
// used by the room directory to answer findPlayerRoom without exposing
// the member list itself.
func (r *Room) HasPlayer(playerID string) bool {
	v, _ := r.dispatch(func() (interface{}, error) {
		for _, m := range r.members {
			if m.RoomPlayerID == playerID {
				return true, nil
			}
		}
		return false, nil
	})
	b, _ := v.(bool)
	return b
}

// IsPrivate reports the room's current IsPrivate config flag, used by the
// room directory's public lobby listing to exclude private rooms.
func (r *Room) IsPrivate() bool {
	v, _ := r.dispatch(func() (interface{}, error) { return r.config.IsPrivate, nil })
	b, _ := v.(bool)
	return b
}

// MaxPlayers returns the room's configured seat cap, used by the public
// lobby listing.
func (r *Room) MaxPlayers() int {
	v, _ := r.dispatch(func() (interface{}, error) { return r.config.MaxPlayers, nil })
	n, _ := v.(int)
	return n
}

// AddPlayer adds a new member in WAITING, or rebinds a reconnecting
// member's channel during PLAYING. The host is the first human member.
func (r *Room) AddPlayer(playerID, name string, isAI bool) error {
	_, err := r.dispatch(func() (interface{}, error) {
		for _, m := range r.members {
			if m.RoomPlayerID == playerID {
				m.IsConnected = true
				if !m.OriginallyAI && m.IsAI && r.game != nil {
					r.rebindHuman(m)
				}
				return nil, nil
			}
		}
		if r.status == StatusPlaying {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "unknown player cannot join a game in progress")
		}
		if r.status != StatusWaiting {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "room is not accepting new players")
		}
		if len(r.members) >= r.config.MaxPlayers {
			return nil, apperr.New(apperr.KindState, apperr.CodeRoomFull, "room is full")
		}
		m := &Member{RoomPlayerID: playerID, Name: name, IsAI: isAI, OriginallyAI: isAI, IsConnected: true}
		r.members = append(r.members, m)
		if r.hostID == "" && !isAI {
			r.hostID = playerID
		}
		r.broadcastRoomUpdate()
		return nil, nil
	})
	return err
}

// RemovePlayer removes a member in WAITING (promoting a new host if
// needed) or marks them disconnected during PLAYING, deferring to the
// reconnection manager.
func (r *Room) RemovePlayer(playerID string) error {
	_, err := r.dispatch(func() (interface{}, error) {
		idx := r.indexOf(playerID)
		if idx < 0 {
			return nil, apperr.New(apperr.KindProtocol, apperr.CodeNotInRoom, "player is not in this room")
		}
		if r.status == StatusPlaying {
			r.members[idx].IsConnected = false
			r.recon.NotifyDisconnect(r.Code, playerID)
			r.broadcastRoomUpdate()
			return nil, nil
		}
		wasHost := r.hostID == playerID
		r.members = append(r.members[:idx], r.members[idx+1:]...)
		if wasHost {
			r.hostID = ""
			for _, m := range r.members {
				if !m.IsAI {
					r.hostID = m.RoomPlayerID
					break
				}
			}
		}
		r.broadcastRoomUpdate()
		return nil, nil
	})
	return err
}

// SetReady toggles a member's ready flag; WAITING only.
func (r *Room) SetReady(playerID string, ready bool) error {
	_, err := r.dispatch(func() (interface{}, error) {
		if r.status != StatusWaiting {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "setReady is only valid while waiting")
		}
		idx := r.indexOf(playerID)
		if idx < 0 {
			return nil, apperr.New(apperr.KindProtocol, apperr.CodeNotInRoom, "player is not in this room")
		}
		r.members[idx].IsReady = ready
		r.broadcastRoomUpdate()
		return nil, nil
	})
	return err
}

// AddAI adds a host-controlled AI seat; WAITING only.
func (r *Room) AddAI(requesterID, name string) error {
	_, err := r.dispatch(func() (interface{}, error) {
		if err := r.requireHost(requesterID); err != nil {
			return nil, err
		}
		if r.status != StatusWaiting {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "addAI is only valid while waiting")
		}
		if len(r.members) >= r.config.MaxPlayers {
			return nil, apperr.New(apperr.KindState, apperr.CodeRoomFull, "room is full")
		}
		r.members = append(r.members, &Member{RoomPlayerID: "ai-" + name + "-" + randSuffix(), Name: name, IsAI: true, IsReady: true, IsConnected: true})
		r.broadcastRoomUpdate()
		return nil, nil
	})
	return err
}

// UpdateConfig replaces the room's config with cfg; host-only, WAITING
// only. Fields are not merged with the current config: a field left unset
// in cfg takes its zero value.
func (r *Room) UpdateConfig(requesterID string, cfg Config) error {
	_, err := r.dispatch(func() (interface{}, error) {
		if err := r.requireHost(requesterID); err != nil {
			return nil, err
		}
		if r.status != StatusWaiting {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "updateRoomConfig is only valid while waiting")
		}
		if len(cfg.Roles) != cfg.MaxPlayers+3 {
			return nil, apperr.New(apperr.KindProtocol, apperr.CodeInvalidTarget, "roles length must equal maxPlayers+3")
		}
		r.config = cfg
		r.broadcastRoomUpdate()
		return nil, nil
	})
	return err
}

// rebindHuman restores human control of a seat that was AI-taken-over at
// grace expiry; called with the actor lock already held (must only be
// invoked from within a dispatched closure).
func (r *Room) rebindHuman(m *Member) {
	hp := decision.NewHumanProvider(r.pusherFor(m.RoomPlayerID))
	r.humans[m.Seat] = hp
	r.game.SetProvider(m.Seat, hp)
	m.IsAI = false
}

func (r *Room) requireHost(requesterID string) error {
	if requesterID != r.hostID {
		return apperr.New(apperr.KindAuthorization, apperr.CodeNotHost, "only the host may perform this action")
	}
	return nil
}

func (r *Room) indexOf(playerID string) int {
	for i, m := range r.members {
		if m.RoomPlayerID == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) broadcastRoomUpdate() {
	r.outbox.Broadcast("roomUpdate", r.summary())
}

// Summary is the public room state fan-out payload.
type Summary struct {
	Code    string   `json:"code"`
	Status  Status   `json:"status"`
	HostID  string   `json:"hostId"`
	Members []Member `json:"members"`
}

// PublicSummary returns the current room summary, used by the gateway to
// answer a fresh join/create with the full member list rather than
// waiting for the next broadcast.
func (r *Room) PublicSummary() Summary {
	v, _ := r.dispatch(func() (interface{}, error) { return r.summary(), nil })
	return v.(Summary)
}

func (r *Room) summary() Summary {
	members := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, *m)
	}
	return Summary{Code: r.Code, Status: r.status, HostID: r.hostID, Members: members}
}

func randSuffix() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(1_000_000))
	return n.String()
}

// SubmitStatement forwards a day statement into the running game.
func (r *Room) SubmitStatement(playerID, text string, at time.Time) error {
	_, err := r.dispatch(func() (interface{}, error) {
		if r.game == nil {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "no game is running")
		}
		seat, ok := r.seatFor(playerID)
		if !ok {
			return nil, apperr.New(apperr.KindProtocol, apperr.CodeNotInRoom, "player is not in this game")
		}
		st, err := r.game.SubmitStatement(seat, text, at)
		if err != nil {
			return nil, err
		}
		if st.Text != "" || text == "" {
			r.outbox.Broadcast("statementMade", st)
		}
		return nil, nil
	})
	return err
}

// ReadyToVote forwards a day ready-up into the running game.
func (r *Room) ReadyToVote(playerID string) error {
	_, err := r.dispatch(func() (interface{}, error) {
		if r.game == nil {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "no game is running")
		}
		seat, ok := r.seatFor(playerID)
		if !ok {
			return nil, apperr.New(apperr.KindProtocol, apperr.CodeNotInRoom, "player is not in this game")
		}
		return nil, r.game.ReadyToVote(seat)
	})
	return err
}

func (r *Room) seatFor(playerID string) (engine.SeatID, bool) {
	for _, m := range r.members {
		if m.RoomPlayerID == playerID && m.Seat != "" {
			return m.Seat, true
		}
	}
	return "", false
}

// GameForView returns the room's running game, used by the gateway to
// project a reconnecting player's catch-up view. ok is false before a
// game has started or after one has ended.
func (r *Room) GameForView() (*engine.Game, bool) {
	v, _ := r.dispatch(func() (interface{}, error) {
		if r.game == nil {
			return nil, nil
		}
		return r.game, nil
	})
	g, _ := v.(*engine.Game)
	return g, g != nil
}

// SeatForView returns the engine seat bound to playerID, if any.
func (r *Room) SeatForView(playerID string) (engine.SeatID, bool) {
	v, _ := r.dispatch(func() (interface{}, error) {
		seat, _ := r.seatFor(playerID)
		return seat, nil
	})
	seat, _ := v.(engine.SeatID)
	return seat, seat != ""
}

// MembersForView snapshots room-level membership facts keyed by seat,
// used by the view projector alongside the engine's own state.
func (r *Room) MembersForView() view.Members {
	v, _ := r.dispatch(func() (interface{}, error) {
		return r.memberStatuses(), nil
	})
	m, _ := v.(view.Members)
	return m
}

// HumanProviderFor returns the bound human provider for a player, used by
// the gateway to deliver actionResponse messages.
func (r *Room) HumanProviderFor(playerID string) (*decision.HumanProvider, bool) {
	v, _ := r.dispatch(func() (interface{}, error) {
		seat, ok := r.seatFor(playerID)
		if !ok {
			return nil, nil
		}
		p, ok := r.humans[seat]
		if !ok {
			return nil, nil
		}
		return p, nil
	})
	p, _ := v.(*decision.HumanProvider)
	return p, p != nil
}
