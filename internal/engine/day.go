package engine

import (
	"fmt"
	"time"

	"github.com/duskcourt/onuw/internal/apperr"
)

// BeginDay transitions NIGHT -> DAY and starts the day deadline.
func (g *Game) BeginDay() error {
	return g.beginPhase(PhaseNight, PhaseDay, func() {
		g.phaseDeadline = time.Now().Add(g.timeout.Day)
	})
}

// SubmitStatement appends a public statement. Valid only during DAY. A
// re-delivered statement with the same (playerId, text, timestamp) is
// deduplicated at-most-once.
func (g *Game) SubmitStatement(seat SeatID, text string, at time.Time) (Statement, error) {
	if g.Phase() != PhaseDay {
		return Statement{}, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "statements are only accepted during DAY")
	}
	key := fmt.Sprintf("%s|%s|%d", seat, text, at.UnixNano())
	if g.seenStatements[key] {
		return Statement{}, nil
	}
	g.seenStatements[key] = true
	st := Statement{PlayerID: seat, Text: text, Timestamp: at}
	g.statements = append(g.statements, st)
	return st, nil
}

// ReadyToVote marks a human seat ready. AI seats are always considered
// ready and never need to call this.
func (g *Game) ReadyToVote(seat SeatID) error {
	if g.Phase() != PhaseDay {
		return apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "readyToVote is only valid during DAY")
	}
	g.mu.Lock()
	g.dayReady[seat] = true
	g.mu.Unlock()
	return nil
}

// DayDeadlinePassed reports whether the configured day deadline has
// elapsed.
func (g *Game) DayDeadlinePassed(now time.Time) bool {
	dl := g.PhaseDeadline()
	return !dl.IsZero() && !now.Before(dl)
}

// AllAliveHumansReady reports whether every alive, human-controlled seat
// (i.e. every seat without an AI-flagged provider) has called
// ReadyToVote. isAI reports whether a seat is currently AI-controlled.
func (g *Game) AllAliveHumansReady(isAI func(SeatID) bool) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.players {
		if !p.Alive || isAI(p.Seat) {
			continue
		}
		if !g.dayReady[p.Seat] {
			return false
		}
	}
	return true
}
