package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/deck"
	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/roles"
)

// Timeouts bundles the per-phase deadlines selected by a timeoutProfile.
type Timeouts struct {
	NightAction time.Duration
	Day         time.Duration
	Voting      time.Duration
}

// Profiles maps the three recognized timeoutProfile values to concrete
// deadlines.
var Profiles = map[string]Timeouts{
	"casual":      {NightAction: 45 * time.Second, Day: 5 * time.Minute, Voting: 60 * time.Second},
	"competitive": {NightAction: 20 * time.Second, Day: 2 * time.Minute, Voting: 30 * time.Second},
	"tournament":  {NightAction: 10 * time.Second, Day: 90 * time.Second, Voting: 15 * time.Second},
}

// Game is a single game session: the phase state machine, the deck, the
// players, and every append-only log the rest of the components read.
//
// Phase transitions are driven by one goroutine per room at a time (the
// room's game runner), but phase, phaseDeadline, votes and voteOpen are
// also read by calls dispatched through the room's actor goroutine (day
// statements/ready-ups, reconnection catch-up views) which can run
// concurrently with a long-running RunNight or RunVoting call on the far
// side of a phase boundary. mu guards those fields, and also dayReady and
// providers, which the actor writes (ready-ups, provider swaps on AI
// takeover or reconnect) while the runner reads them; everything else is
// touched by at most one goroutine at a time because of phase ordering.
type Game struct {
	mu    sync.RWMutex
	phase Phase

	players []Player // index i is SeatID player-(i+1)
	deck    *deck.Deck
	shadow  *ShadowTable
	timeout Timeouts

	nightResults map[SeatID][]NightResult
	statements   []Statement
	dayReady     map[SeatID]bool
	votes        Vote
	voteOpen     bool

	result *Result

	providers map[SeatID]decision.Provider

	phaseDeadline time.Time

	seenStatements map[string]bool // dedup key: playerID|text|timestamp
}

// NewGame validates cfg and performs SETUP: shuffles, honors forced-role
// overrides, deals seats, places the remaining three in center, and sets
// starting roles. Returns a Game sitting in PhaseSetup, ready for
// BeginNight.
func NewGame(cfg Config, names []string) (*Game, error) {
	n := len(names)
	if n != cfg.MaxPlayers {
		return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "player count does not match config.maxPlayers")
	}
	if len(cfg.Roles) != cfg.MaxPlayers+deck.CenterSlots {
		return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "role list length must equal maxPlayers+3")
	}
	for _, r := range cfg.Roles {
		if _, ok := roles.Lookup(r); !ok {
			return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, fmt.Sprintf("unknown role %q in config", r))
		}
	}

	shuffled := append([]roles.Role(nil), cfg.Roles...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	seatRoles := append([]roles.Role(nil), shuffled[:n]...)
	var center [deck.CenterSlots]roles.Role
	copy(center[:], shuffled[n:])

	for seat, forced := range cfg.ForcedRoleSeats {
		idx := int(seat.index())
		if idx < 0 || idx >= n {
			continue
		}
		seatRoles[idx] = forced
	}

	g := &Game{
		phase:          PhaseSetup,
		deck:           deck.New(seatRoles, center),
		shadow:         NewShadowTable(),
		nightResults:   map[SeatID][]NightResult{},
		dayReady:       map[SeatID]bool{},
		providers:      map[SeatID]decision.Provider{},
		seenStatements: map[string]bool{},
	}
	if t, ok := Profiles[cfg.TimeoutProfile]; ok {
		g.timeout = t
	} else {
		g.timeout = Profiles["casual"]
	}

	for i := 0; i < n; i++ {
		sid := seatID(i)
		g.players = append(g.players, Player{
			Seat:         sid,
			Name:         names[i],
			StartingRole: seatRoles[i],
			Alive:        true,
		})
	}
	return g, nil
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// beginPhase atomically checks the current phase against from, sets it to
// to, and runs onEnter (used to set the new phase's deadline and any
// phase-entry bookkeeping) before releasing the lock, so a concurrent
// reader of Phase/PhaseDeadline never observes a transition half-applied.
func (g *Game) beginPhase(from, to Phase, onEnter func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != from {
		return apperr.New(apperr.KindState, apperr.CodeInvalidPhase,
			fmt.Sprintf("cannot transition %s -> %s from %s", from, to, g.phase))
	}
	g.phase = to
	if onEnter != nil {
		onEnter()
	}
	return nil
}

// SetProvider binds (or swaps, for reconnection/AI-takeover) the decision
// provider for one seat. Safe to call at any phase; the effect is only
// visible to prompts issued after the call.
func (g *Game) SetProvider(seat SeatID, p decision.Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[seat] = p
}

func (g *Game) providerFor(seat SeatID) decision.Provider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if p, ok := g.providers[seat]; ok {
		return p
	}
	return noopProvider{}
}

type noopProvider struct{}

func (noopProvider) Ask(_ context.Context, req decision.Request) (decision.Answer, error) {
	return decision.DefaultAnswer(req), nil
}

// Players returns a copy of the player roster.
func (g *Game) Players() []Player {
	return append([]Player(nil), g.players...)
}

func (g *Game) playerAt(seat SeatID) (*Player, bool) {
	idx := int(seat.index())
	if idx < 0 || idx >= len(g.players) {
		return nil, false
	}
	return &g.players[idx], true
}

// CurrentRole returns the role currently at a seat (deck-derived).
func (g *Game) CurrentRole(seat SeatID) roles.Role {
	return g.deck.RoleAt(deck.Seat(int(seat.index())))
}

// StartingRole returns the role dealt to a seat at setup.
func (g *Game) StartingRole(seat SeatID) roles.Role {
	p, ok := g.playerAt(seat)
	if !ok {
		return ""
	}
	return p.StartingRole
}

// NightResultsFor returns every NightResult delivered to seat so far, in
// emission order.
func (g *Game) NightResultsFor(seat SeatID) []NightResult {
	return append([]NightResult(nil), g.nightResults[seat]...)
}

// Statements returns every public statement so far, in arrival order.
func (g *Game) Statements() []Statement {
	return append([]Statement(nil), g.statements...)
}

// Votes returns the vote map, or nil if voting has not yet closed.
func (g *Game) Votes() Vote {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.voteOpen || g.votes == nil {
		return nil
	}
	out := make(Vote, len(g.votes))
	for k, v := range g.votes {
		out[k] = v
	}
	return out
}

// Result returns the resolution outcome, or nil before RESOLUTION.
func (g *Game) Result() *Result {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.result
}

// PhaseDeadline returns the deadline for the current phase, or the zero
// time if the current phase has none (SETUP/RESOLUTION).
func (g *Game) PhaseDeadline() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phaseDeadline
}

// CenterRoles returns the final three center cards (used once resolution
// reveals them).
func (g *Game) CenterRoles() [3]roles.Role {
	var out [3]roles.Role
	for i := 0; i < deck.CenterSlots; i++ {
		out[i] = g.deck.RoleAt(deck.CenterPos(i))
	}
	return out
}
