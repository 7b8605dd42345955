package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/engine"
	"github.com/duskcourt/onuw/internal/roles"
	"github.com/duskcourt/onuw/internal/view"
)

// Start transitions WAITING -> STARTING -> PLAYING and launches the game
// runner goroutine. Host-only; requires every non-host human ready and a
// legal player count.
func (r *Room) Start(requesterID string) error {
	_, err := r.dispatch(func() (interface{}, error) {
		if err := r.requireHost(requesterID); err != nil {
			return nil, err
		}
		if r.status != StatusWaiting {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "startGame requires WAITING")
		}
		if len(r.members) < r.config.MinPlayers || len(r.members) > r.config.MaxPlayers {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "player count out of range")
		}
		for _, m := range r.members {
			if m.RoomPlayerID != r.hostID && !m.IsAI && !m.IsReady {
				return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "all non-host humans must be ready")
			}
		}

		// Top up with AI seats if the host wants to start below maxPlayers.
		for len(r.members) < r.config.MaxPlayers {
			r.members = append(r.members, &Member{RoomPlayerID: "ai-fill-" + randSuffix(), Name: "AI Player", IsAI: true, IsReady: true, IsConnected: true})
		}

		names := make([]string, len(r.members))
		for i, m := range r.members {
			names[i] = m.Name
			m.Seat = engine.SeatID(seatLabel(i))
		}

		cfg := engine.Config{
			MinPlayers:     r.config.MinPlayers,
			MaxPlayers:     r.config.MaxPlayers,
			Roles:          r.config.Roles,
			TimeoutProfile: r.config.TimeoutProfile,
		}
		g, err := engine.NewGame(cfg, names)
		if err != nil {
			return nil, err
		}
		r.game = g
		r.status = StatusStarting

		for _, m := range r.members {
			if m.IsAI {
				ai := decision.NewAIProvider(decision.SeatID(m.Seat), decision.RandomPolicy{})
				g.SetProvider(m.Seat, decision.Instrument(ai, r.m))
			} else {
				hp := decision.NewHumanProvider(r.pusherFor(m.RoomPlayerID))
				r.humans[m.Seat] = hp
				g.SetProvider(m.Seat, decision.Instrument(hp, r.m))
			}
		}

		r.status = StatusPlaying
		r.gameDoneC = make(chan struct{})
		r.outbox.Broadcast("gameStarted", r.gameStartedPayload())
		go r.runGame(context.Background())
		return nil, nil
	})
	return err
}

func seatLabel(i int) string {
	return engine.SeatLabel(roles.SeatIndex(i))
}

type gameStartedView struct {
	RoomPlayerID string `json:"roomPlayerId"`
	SeatID       string `json:"seatId"`
}

func (r *Room) gameStartedPayload() map[string]interface{} {
	mapping := make([]gameStartedView, 0, len(r.members))
	for _, m := range r.members {
		mapping = append(mapping, gameStartedView{RoomPlayerID: m.RoomPlayerID, SeatID: string(m.Seat)})
	}
	return map[string]interface{}{"seatMap": mapping}
}

type pusher struct {
	room     *Room
	playerID string
}

func (r *Room) pusherFor(playerID string) decision.Pusher {
	return pusher{room: r, playerID: playerID}
}

func (p pusher) PushActionRequired(requestID string, req decision.Request) error {
	p.room.outbox.Unicast(p.playerID, "actionRequired", map[string]interface{}{
		"requestId":  requestID,
		"actionType": string(req.Kind),
		"options":    req.Options,
		"centerN":    req.CenterN,
		"timeoutMs":  time.Until(req.Deadline).Milliseconds(),
	})
	return nil
}

// runGame drives the engine's phase sequence for this room's game. It
// runs on its own goroutine so a blocking decision-provider call (a human
// prompt) never stalls other rooms, and so the DAY phase's wait can be
// interrupted by incoming statements/ready-ups without stalling NIGHT or
// VOTING.
func (r *Room) runGame(ctx context.Context) {
	defer close(r.gameDoneC)
	g := r.game

	nightStart := time.Now()
	err := g.RunNight(ctx, func(nr engine.NightResult) {
		playerID := r.playerIDForSeat(nr.Seat)
		r.outbox.Unicast(playerID, "nightResult", view.ProjectNightResult(nr))
	})
	if r.m != nil {
		r.m.NightPhaseDurationSecs.Observe(time.Since(nightStart).Seconds())
	}
	if err != nil {
		r.log.Error("night phase failed", zap.Error(err))
		r.endGameUnrecoverable()
		return
	}

	if err := g.BeginDay(); err != nil {
		r.log.Error("begin day failed", zap.Error(err))
		r.endGameUnrecoverable()
		return
	}
	r.outbox.Broadcast("phaseChange", map[string]interface{}{"phase": "DAY", "timeRemainingMs": time.Until(g.PhaseDeadline()).Milliseconds()})
	r.waitForDayEnd(g)

	if err := g.BeginVoting(); err != nil {
		r.log.Error("begin voting failed", zap.Error(err))
		r.endGameUnrecoverable()
		return
	}
	r.outbox.Broadcast("phaseChange", map[string]interface{}{"phase": "VOTING", "timeRemainingMs": time.Until(g.PhaseDeadline()).Milliseconds()})
	votes, err := g.RunVoting(ctx)
	if err != nil {
		r.log.Error("voting phase failed", zap.Error(err))
		r.endGameUnrecoverable()
		return
	}
	r.outbox.Broadcast("votesRevealed", votes)

	result, err := g.Resolve()
	if err != nil {
		r.log.Error("resolve failed", zap.Error(err))
		r.endGameUnrecoverable()
		return
	}
	r.outbox.Broadcast("elimination", result.Eliminated)
	r.outbox.Broadcast("gameEnd", result)

	r.finishGame()
}

// waitForDayEnd blocks until the configured deadline elapses or every
// alive human has readied up, polling at a short interval. g itself is
// safe to call from this goroutine concurrently with SubmitStatement and
// ReadyToVote dispatched through the room's actor loop (Game guards its
// own phase/vote bookkeeping internally). Only the membership lookup in
// isAI touches room state shared with the actor loop, so that lookup
// alone goes through dispatch.
func (r *Room) waitForDayEnd(g *engine.Game) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		snap, _ := r.dispatch(func() (interface{}, error) {
			return r.aiSeats(), nil
		})
		aiSeats := snap.(map[engine.SeatID]bool)
		isAI := func(seat engine.SeatID) bool { return aiSeats[seat] }
		if g.AllAliveHumansReady(isAI) || g.DayDeadlinePassed(time.Now()) {
			return
		}
	}
}

// aiSeats snapshots which seats are AI-controlled, called only from
// within the room actor loop.
func (r *Room) aiSeats() map[engine.SeatID]bool {
	out := make(map[engine.SeatID]bool, len(r.members))
	for _, m := range r.members {
		out[m.Seat] = m.IsAI
	}
	return out
}

func (r *Room) playerIDForSeat(seat engine.SeatID) string {
	for _, m := range r.members {
		if m.Seat == seat {
			return m.RoomPlayerID
		}
	}
	return ""
}

func (r *Room) memberStatuses() view.Members {
	out := view.Members{}
	for _, m := range r.members {
		out[string(m.Seat)] = view.MemberStatus{Name: m.Name, Connected: m.IsConnected, IsAI: m.IsAI}
	}
	return out
}

// TakeOverSeatWithAI swaps playerID's bound seat from its human provider
// to a fresh AI provider and immediately answers any prompt the human
// had pending, so a night/day/vote phase waiting on that seat is never
// stalled by a disconnect. Returns false if the room has no game running
// or playerID is not bound to a seat.
func (r *Room) TakeOverSeatWithAI(playerID string) bool {
	v, _ := r.dispatch(func() (interface{}, error) {
		if r.game == nil {
			return false, nil
		}
		seat, ok := r.seatFor(playerID)
		if !ok {
			return false, nil
		}
		human, ok := r.humans[seat]
		if !ok {
			return false, nil
		}
		ai := decision.NewAIProvider(decision.SeatID(seat), decision.RandomPolicy{})
		r.game.SetProvider(seat, decision.Instrument(ai, r.m))
		delete(r.humans, seat)
		for _, m := range r.members {
			if m.Seat == seat {
				m.IsAI = true
			}
		}
		human.ResolvePendingWithAI(ai)
		return true, nil
	})
	ok, _ := v.(bool)
	return ok
}

func (r *Room) finishGame() {
	_, _ = r.dispatch(func() (interface{}, error) {
		r.status = StatusEnded
		return nil, nil
	})
}

func (r *Room) endGameUnrecoverable() {
	_, _ = r.dispatch(func() (interface{}, error) {
		r.status = StatusEnded
		r.outbox.Broadcast("gameEnd", engine.Result{NoWinner: true})
		return nil, nil
	})
}
