package engine

import (
	"context"
	"time"

	"github.com/duskcourt/onuw/internal/deck"
	"github.com/duskcourt/onuw/internal/roles"
)

// RunNight executes the NIGHT phase to completion: every wake order 1..9
// in sequence (each player's strategy runs to completion before the
// next), followed by the order-10 Doppel-Insomniac wake. emit is called
// synchronously after each NightResult is appended, so the caller (the
// room) can deliver it over the wire immediately — "other players are not
// told."
func (g *Game) RunNight(ctx context.Context, emit func(NightResult)) error {
	err := g.beginPhase(PhaseSetup, PhaseNight, func() {
		g.phaseDeadline = time.Now().Add(g.timeout.NightAction * time.Duration(len(g.players)))
	})
	if err != nil {
		return err
	}

	for _, order := range roles.NightOrders() {
		for _, seat := range g.seatsStartingAt(order) {
			g.runSeatTurn(ctx, seat, order, emit)
		}
	}

	for _, idx := range g.shadow.Seats() {
		if copied, ok := g.shadow.CopiedRole(idx); ok && copied == roles.Insomniac {
			g.runDoppelInsomniacWake(idx, emit)
		}
	}
	return nil
}

func (g *Game) seatsStartingAt(order int) []SeatID {
	var out []SeatID
	for _, r := range roles.RolesAtOrder(order) {
		for _, p := range g.players {
			if p.StartingRole == r {
				out = append(out, p.Seat)
			}
		}
	}
	return out
}

func (g *Game) runSeatTurn(ctx context.Context, seat SeatID, order int, emit func(NightResult)) {
	result := g.executeStrategy(ctx, seat, g.StartingRole(seat))
	nr := NightResult{Seat: seat, Role: g.StartingRole(seat), Inner: result, Emitted: time.Now()}
	g.nightResults[seat] = append(g.nightResults[seat], nr)
	emit(nr)
}

// executeStrategy runs role's strategy for actingSeat, recovering a panic
// into a failed NightResult so one role's bug does not abort the night.
func (g *Game) executeStrategy(ctx context.Context, actingSeat SeatID, role roles.Role) (res roles.NightResult) {
	strategy, ok := roles.Strategies[role]
	if !ok {
		return roles.NightResult{Seat: actingSeat.index(), ActedAs: role}
	}
	defer func() {
		if r := recover(); r != nil {
			res = roles.NightResult{Seat: actingSeat.index(), ActedAs: role, Failed: true, FailReason: "strategy panicked"}
		}
	}()

	nc := roles.NightContext{
		Ctx:      ctx,
		Self:     actingSeat.index(),
		NumSeats: len(g.players),
		StartingRoleAt: func(idx roles.SeatIndex) roles.Role {
			return g.StartingRole(seatID(int(idx)))
		},
		Deck:     g.deck,
		Shadow:   g.shadow,
		Provider: g.providerFor(actingSeat),
		Deadline: time.Now().Add(g.timeout.NightAction),
		ExecuteInline: func(inlineRole roles.Role, seatIdx roles.SeatIndex, inner roles.NightContext) (roles.NightResult, error) {
			s, ok := roles.Strategies[inlineRole]
			if !ok {
				return roles.NightResult{}, nil
			}
			return s(inner)
		},
	}

	out, err := strategy(nc)
	if err != nil {
		return roles.NightResult{Seat: actingSeat.index(), ActedAs: role, Failed: true, FailReason: err.Error()}
	}
	return out
}

func (g *Game) runDoppelInsomniacWake(idx roles.SeatIndex, emit func(NightResult)) {
	seat := seatID(int(idx))
	pos := deck.Seat(int(idx))
	inner := roles.NightResult{
		Seat:    idx,
		ActedAs: roles.Insomniac,
		Viewed:  []roles.Viewing{{Pos: pos, Role: g.deck.RoleAt(pos)}},
	}
	nr := NightResult{Seat: seat, Role: roles.Doppelganger, Inner: inner, Emitted: time.Now()}
	g.nightResults[seat] = append(g.nightResults[seat], nr)
	emit(nr)
}
