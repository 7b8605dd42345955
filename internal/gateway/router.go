package gateway

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/logging"
	"github.com/duskcourt/onuw/internal/protocol"
	"github.com/duskcourt/onuw/internal/reconnect"
	"github.com/duskcourt/onuw/internal/roles"
	"github.com/duskcourt/onuw/internal/room"
	"github.com/duskcourt/onuw/internal/view"
)

// Rooms is the subset of roommgr.Manager the Gateway depends on, kept
// narrow so router tests can fake the room directory.
type Rooms interface {
	CreateRoom(cfg room.Config, recon room.DisconnectNotifier) (*room.Room, error)
	Get(code string) (*room.Room, bool)
	RefreshParticipants(code string, count int)
	FindPlayerRoom(playerID string) (*room.Room, bool)
	ListPublicWaiting() []*room.Room
}

// Gateway implements Router: it decodes every client message type and
// drives the corresponding roommgr/room/decision call, translating
// apperr failures into wire error envelopes.
type Gateway struct {
	log      *logging.Logger
	rooms    Rooms
	recon    *reconnect.Manager
	hub      *Hub
	verifier TokenVerifier
}

// NewGateway wires the room directory, reconnection manager, and session
// hub into a single message router.
func NewGateway(rooms Rooms, recon *reconnect.Manager, hub *Hub, verifier TokenVerifier) *Gateway {
	if verifier == nil {
		verifier = NoopVerifier{}
	}
	return &Gateway{log: logging.Get(), rooms: rooms, recon: recon, hub: hub, verifier: verifier}
}

// Route decodes one envelope's payload and dispatches it.
func (g *Gateway) Route(s *Session, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeAuthenticate:
		g.handleAuthenticate(s, env)
	case protocol.TypeCreateRoom:
		g.handleCreateRoom(s, env)
	case protocol.TypeJoinRoom:
		g.handleJoinRoom(s, env)
	case protocol.TypeLeaveRoom:
		g.handleLeaveRoom(s)
	case protocol.TypeSetReady:
		g.handleSetReady(s, env)
	case protocol.TypeAddAI:
		g.handleAddAI(s, env)
	case protocol.TypeRemovePlayer:
		g.handleRemovePlayer(s, env)
	case protocol.TypeUpdateRoomConfig:
		g.handleUpdateRoomConfig(s, env)
	case protocol.TypeStartGame:
		g.handleStartGame(s)
	case protocol.TypeSubmitStatement:
		g.handleSubmitStatement(s, env)
	case protocol.TypeReadyToVote:
		g.handleReadyToVote(s)
	case protocol.TypeActionResponse:
		g.handleActionResponse(s, env)
	case protocol.TypeRejoinRoom:
		g.handleRejoinRoom(s)
	case protocol.TypeListPublicRooms:
		g.handleListPublicRooms(s)
	case protocol.TypePing:
		s.send(protocol.TypePong, nil)
	default:
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeInvalidTarget, "unknown message type"))
	}
}

// HandleDisconnect unregisters the session and, if it was bound to a
// game in progress, notifies the reconnection manager so a grace timer
// starts ticking instead of stranding the room.
func (g *Gateway) HandleDisconnect(s *Session) {
	if s.RoomCode == "" || s.PlayerID == "" {
		return
	}
	g.hub.Unregister(s.RoomCode, s.PlayerID, s)
	if r, ok := g.rooms.Get(s.RoomCode); ok {
		_ = r.RemovePlayer(s.PlayerID)
		g.rooms.RefreshParticipants(s.RoomCode, len(r.PublicSummary().Members))
	}
}

func (g *Gateway) handleAuthenticate(s *Session, env protocol.Envelope) {
	var p protocol.AuthenticatePayload
	if !g.decode(s, env, &p) {
		return
	}
	if p.PlayerID == "" {
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeAuthRequired, "playerId is required"))
		return
	}
	if err := g.verifier.Verify(p.Token, p.PlayerID); err != nil {
		g.sendError(s, apperr.Wrap(apperr.KindAuthorization, apperr.CodeAuthRequired, "authentication failed", err))
		return
	}
	s.Bind("", p.PlayerID)
	s.PlayerName = p.PlayerName
	s.send(protocol.TypeAuthenticated, map[string]string{"playerId": p.PlayerID})
}

func (g *Gateway) handleCreateRoom(s *Session, env protocol.Envelope) {
	if !g.requireAuthenticated(s) {
		return
	}
	var p protocol.CreateRoomPayload
	if !g.decode(s, env, &p) {
		return
	}

	cfg, err := toEngineRoomConfig(p.Config)
	if err != nil {
		g.sendError(s, err)
		return
	}

	r, err := g.rooms.CreateRoom(cfg, g.recon)
	if err != nil {
		g.sendError(s, err)
		return
	}

	if err := r.AddPlayer(s.PlayerID, s.PlayerName, false); err != nil {
		g.sendError(s, err)
		return
	}

	s.Bind(r.Code, s.PlayerID)
	g.hub.Register(r.Code, s.PlayerID, s)
	g.rooms.RefreshParticipants(r.Code, len(r.PublicSummary().Members))
	s.send(protocol.TypeRoomCreated, r.PublicSummary())
}

func (g *Gateway) handleJoinRoom(s *Session, env protocol.Envelope) {
	if !g.requireAuthenticated(s) {
		return
	}
	var p protocol.JoinRoomPayload
	if !g.decode(s, env, &p) {
		return
	}

	r, ok := g.rooms.Get(p.RoomCode)
	if !ok {
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeRoomNotFound, "no room with that code"))
		return
	}

	wasTracked := g.recon.NotifyReconnect(p.RoomCode, s.PlayerID)
	if err := r.AddPlayer(s.PlayerID, p.PlayerName, false); err != nil {
		g.sendError(s, err)
		return
	}

	s.Bind(p.RoomCode, s.PlayerID)
	g.hub.Register(p.RoomCode, s.PlayerID, s)
	g.rooms.RefreshParticipants(p.RoomCode, len(r.PublicSummary().Members))

	if wasTracked {
		g.log.Info("player reconnected", zap.String("room", p.RoomCode), zap.String("player", s.PlayerID))
		g.deliverCatchUp(s, r)
	}
	s.send(protocol.TypeRoomJoined, r.PublicSummary())
}

// handleRejoinRoom looks up the room an already-authenticated player
// belongs to without requiring the client to remember its join code,
// covering a page refresh or a new device mid-game.
func (g *Gateway) handleRejoinRoom(s *Session) {
	if !g.requireAuthenticated(s) {
		return
	}
	r, ok := g.rooms.FindPlayerRoom(s.PlayerID)
	if !ok {
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeRoomNotFound, "no room found for this player"))
		return
	}

	wasTracked := g.recon.NotifyReconnect(r.Code, s.PlayerID)
	if err := r.AddPlayer(s.PlayerID, s.PlayerName, false); err != nil {
		g.sendError(s, err)
		return
	}

	s.Bind(r.Code, s.PlayerID)
	g.hub.Register(r.Code, s.PlayerID, s)
	g.rooms.RefreshParticipants(r.Code, len(r.PublicSummary().Members))

	if wasTracked {
		g.log.Info("player reconnected", zap.String("room", r.Code), zap.String("player", s.PlayerID))
		g.deliverCatchUp(s, r)
	}
	s.send(protocol.TypeRoomJoined, r.PublicSummary())
}

// handleListPublicRooms answers a lobby browser with every non-private
// WAITING room, never exposing member rosters for rooms the caller has
// not joined.
func (g *Gateway) handleListPublicRooms(s *Session) {
	rooms := g.rooms.ListPublicWaiting()
	out := make([]protocol.PublicRoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, protocol.PublicRoomSummary{
			Code:        r.Code,
			MemberCount: len(r.PublicSummary().Members),
			MaxPlayers:  r.MaxPlayers(),
		})
	}
	s.send(protocol.TypePublicRoomList, protocol.PublicRoomListPayload{Rooms: out})
}

// deliverCatchUp re-sends the sanitized player view for the bound seat,
// used so a reconnecting client doesn't have to wait for the next
// broadcast to learn where the game stands.
func (g *Gateway) deliverCatchUp(s *Session, r *room.Room) {
	gm, ok := r.GameForView()
	if !ok {
		return
	}
	seat, ok := r.SeatForView(s.PlayerID)
	if !ok {
		return
	}
	pv := view.Project(gm, seat, r.MembersForView(), time.Now())
	s.send(protocol.TypeGameState, pv)
}

func (g *Gateway) handleLeaveRoom(s *Session) {
	if !g.requireBound(s) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	_ = r.RemovePlayer(s.PlayerID)
	g.rooms.RefreshParticipants(s.RoomCode, len(r.PublicSummary().Members))
	g.hub.Unregister(s.RoomCode, s.PlayerID, s)
}

func (g *Gateway) handleSetReady(s *Session, env protocol.Envelope) {
	if !g.requireBound(s) {
		return
	}
	var p protocol.SetReadyPayload
	if !g.decode(s, env, &p) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	if err := r.SetReady(s.PlayerID, p.Ready); err != nil {
		g.sendError(s, err)
	}
}

func (g *Gateway) handleAddAI(s *Session, env protocol.Envelope) {
	if !g.requireBound(s) {
		return
	}
	var p struct {
		Name string `json:"name"`
	}
	if !g.decode(s, env, &p) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	if p.Name == "" {
		p.Name = "AI Player"
	}
	if err := r.AddAI(s.PlayerID, p.Name); err != nil {
		g.sendError(s, err)
		return
	}
	g.rooms.RefreshParticipants(s.RoomCode, len(r.PublicSummary().Members))
}

func (g *Gateway) handleRemovePlayer(s *Session, env protocol.Envelope) {
	if !g.requireBound(s) {
		return
	}
	var p protocol.RemovePlayerPayload
	if !g.decode(s, env, &p) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	if s.PlayerID != p.PlayerID {
		if summary := r.PublicSummary(); summary.HostID != s.PlayerID {
			g.sendError(s, apperr.New(apperr.KindAuthorization, apperr.CodeNotHost, "only the host may remove another player"))
			return
		}
	}
	if err := r.RemovePlayer(p.PlayerID); err != nil {
		g.sendError(s, err)
		return
	}
	g.rooms.RefreshParticipants(s.RoomCode, len(r.PublicSummary().Members))
}

func (g *Gateway) handleUpdateRoomConfig(s *Session, env protocol.Envelope) {
	if !g.requireBound(s) {
		return
	}
	var p protocol.UpdateRoomConfigPayload
	if !g.decode(s, env, &p) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	cfg, err := toEngineRoomConfig(p.Config)
	if err != nil {
		g.sendError(s, err)
		return
	}
	if err := r.UpdateConfig(s.PlayerID, cfg); err != nil {
		g.sendError(s, err)
	}
}

func (g *Gateway) handleStartGame(s *Session) {
	if !g.requireBound(s) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	if err := r.Start(s.PlayerID); err != nil {
		g.sendError(s, err)
	}
}

func (g *Gateway) handleSubmitStatement(s *Session, env protocol.Envelope) {
	if !g.requireBound(s) {
		return
	}
	var p protocol.SubmitStatementPayload
	if !g.decode(s, env, &p) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	if err := r.SubmitStatement(s.PlayerID, p.Text, time.Now()); err != nil {
		g.sendError(s, err)
	}
}

func (g *Gateway) handleReadyToVote(s *Session) {
	if !g.requireBound(s) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	if err := r.ReadyToVote(s.PlayerID); err != nil {
		g.sendError(s, err)
	}
}

func (g *Gateway) handleActionResponse(s *Session, env protocol.Envelope) {
	if !g.requireBound(s) {
		return
	}
	var p protocol.ActionResponsePayload
	if !g.decode(s, env, &p) {
		return
	}
	r, ok := g.rooms.Get(s.RoomCode)
	if !ok {
		return
	}
	hp, ok := r.HumanProviderFor(s.PlayerID)
	if !ok {
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeInvalidTarget, "no pending prompt for this player"))
		return
	}
	var ans decision.Answer
	if err := json.Unmarshal(p.Response, &ans); err != nil {
		g.sendError(s, apperr.Wrap(apperr.KindProtocol, apperr.CodeInvalidTarget, "malformed action response", err))
		return
	}
	if hp.Resolve(p.RequestID, ans) {
		s.send(protocol.TypeActionAcknowledged, map[string]string{"requestId": p.RequestID})
	}
}

func (g *Gateway) requireAuthenticated(s *Session) bool {
	if s.PlayerID == "" {
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeAuthRequired, "authenticate first"))
		return false
	}
	return true
}

func (g *Gateway) requireBound(s *Session) bool {
	if s.PlayerID == "" || s.RoomCode == "" {
		g.sendError(s, apperr.New(apperr.KindProtocol, apperr.CodeNotInRoom, "join a room first"))
		return false
	}
	return true
}

func (g *Gateway) decode(s *Session, env protocol.Envelope, out interface{}) bool {
	if len(env.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		g.sendError(s, apperr.Wrap(apperr.KindProtocol, apperr.CodeInvalidTarget, "malformed payload", err))
		return false
	}
	return true
}

func (g *Gateway) sendError(s *Session, err error) {
	ae, ok := err.(*apperr.Error)
	if !ok {
		ae = apperr.Wrap(apperr.KindInternal, apperr.CodeInternalError, err.Error(), err)
	}
	s.send(protocol.TypeError, protocol.ErrorPayload{Code: ae.Code, Message: ae.Message})
}

func toEngineRoomConfig(c protocol.RoomConfig) (room.Config, error) {
	parsed := make([]roles.Role, 0, len(c.Roles))
	for _, name := range c.Roles {
		r := roles.Role(name)
		if _, ok := roles.Lookup(r); !ok {
			return room.Config{}, apperr.New(apperr.KindProtocol, apperr.CodeInvalidTarget, "unknown role: "+name)
		}
		parsed = append(parsed, r)
	}
	return room.Config{
		MinPlayers:      c.MinPlayers,
		MaxPlayers:      c.MaxPlayers,
		Roles:           parsed,
		TimeoutProfile:  c.TimeoutProfile,
		IsPrivate:       c.IsPrivate,
		AllowSpectators: c.AllowSpectators,
	}, nil
}

