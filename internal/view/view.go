// Package view implements the player view projector: the single gate that
// sanitizes full engine state into the sanitized view sent to one player.
package view

import (
	"time"

	"github.com/duskcourt/onuw/internal/engine"
	"github.com/duskcourt/onuw/internal/roles"
)

// PublicPlayer is the public-facing slice of one player's state — no role
// field is ever present for anyone but the viewer.
type PublicPlayer struct {
	SeatID    string `json:"seatId"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	IsAI      bool   `json:"isAi"`
	HasSpoken bool   `json:"hasSpoken"`
	HasVoted  bool   `json:"hasVoted"`
	Alive     bool   `json:"alive"`
}

// NightResultView is the sanitized, JSON-friendly projection of one
// roles.NightResult delivered to its owner only.
type NightResultView struct {
	ActedAs    string           `json:"actedAs"`
	Viewed     []ViewingView    `json:"viewed,omitempty"`
	Teammates  []string         `json:"teammates,omitempty"`
	Swap       *SwapView        `json:"swap,omitempty"`
	CopiedFrom string           `json:"copiedFrom,omitempty"`
	CopiedRole string           `json:"copiedRole,omitempty"`
	NoOthers   bool             `json:"noOthers,omitempty"`
	Failed     bool             `json:"failed,omitempty"`
	Emitted    time.Time        `json:"emittedAt"`
}

type ViewingView struct {
	Position string `json:"position"`
	Role     string `json:"role"`
}

type SwapView struct {
	Pos1 string `json:"pos1"`
	Pos2 string `json:"pos2"`
}

// StatementView is one public day statement.
type StatementView struct {
	PlayerID  string    `json:"playerId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerView is the sanitized snapshot delivered to exactly one player.
type PlayerView struct {
	Phase           string            `json:"phase"`
	MyStartingRole  string            `json:"myStartingRole"`
	MyNightResults  []NightResultView `json:"myNightResults"`
	Players         []PublicPlayer    `json:"players"`
	Statements      []StatementView   `json:"statements"`
	TimeRemainingMs int64             `json:"timeRemainingMs"`

	// Only populated once the corresponding phase has closed.
	Votes        map[string]string `json:"votes,omitempty"`
	Eliminated   []string          `json:"eliminated,omitempty"`
	FinalRoles   map[string]string `json:"finalRoles,omitempty"`
	CenterRoles  []string          `json:"centerRoles,omitempty"`
	WinningTeams []string          `json:"winningTeams,omitempty"`
	WinningSeats []string          `json:"winningSeats,omitempty"`
}

// Members supplies the room-level membership facts the engine itself does
// not track (connection/AI status), keyed by engine seat id.
type Members map[string]MemberStatus

type MemberStatus struct {
	Name      string
	Connected bool
	IsAI      bool
}

// Project produces the sanitized view of g for forSeat. It is pure: the
// same (g, forSeat, members, now) always yields the same PlayerView,
// which is what makes catch-up re-delivery idempotent.
func Project(g *engine.Game, forSeat engine.SeatID, members Members, now time.Time) PlayerView {
	pv := PlayerView{
		Phase:          string(g.Phase()),
		MyStartingRole: string(g.StartingRole(forSeat)),
	}
	if dl := g.PhaseDeadline(); !dl.IsZero() {
		if remaining := dl.Sub(now); remaining > 0 {
			pv.TimeRemainingMs = remaining.Milliseconds()
		}
	}

	votes := g.Votes()
	for _, p := range g.Players() {
		pv.Players = append(pv.Players, PublicPlayer{
			SeatID:    string(p.Seat),
			Name:      members[string(p.Seat)].Name,
			Connected: members[string(p.Seat)].Connected,
			IsAI:      members[string(p.Seat)].IsAI,
			HasSpoken: hasSpoken(g, p.Seat),
			HasVoted:  votes != nil && votes[p.Seat] != "",
			Alive:     p.Alive,
		})
	}

	for _, nr := range g.NightResultsFor(forSeat) {
		pv.MyNightResults = append(pv.MyNightResults, projectNightResult(nr))
	}

	for _, s := range g.Statements() {
		pv.Statements = append(pv.Statements, StatementView{
			PlayerID:  string(s.PlayerID),
			Text:      s.Text,
			Timestamp: s.Timestamp,
		})
	}

	if votes != nil {
		pv.Votes = map[string]string{}
		for voter, target := range votes {
			pv.Votes[string(voter)] = string(target)
		}
	}

	if result := g.Result(); result != nil {
		for _, s := range result.Eliminated {
			pv.Eliminated = append(pv.Eliminated, string(s))
		}
		pv.FinalRoles = map[string]string{}
		for seat, r := range result.FinalRoles {
			pv.FinalRoles[string(seat)] = string(r)
		}
		for _, r := range result.CenterRoles {
			pv.CenterRoles = append(pv.CenterRoles, string(r))
		}
		for _, t := range result.WinningTeams {
			pv.WinningTeams = append(pv.WinningTeams, string(t))
		}
		for _, s := range result.WinningSeats {
			pv.WinningSeats = append(pv.WinningSeats, string(s))
		}
	}

	return pv
}

// ProjectNightResult sanitizes a single engine.NightResult for delivery
// to its owning player, used by the room to unicast each result the
// instant it is produced (rather than waiting for a full view refresh).
func ProjectNightResult(nr engine.NightResult) NightResultView {
	return projectNightResult(nr)
}

func hasSpoken(g *engine.Game, seat engine.SeatID) bool {
	for _, s := range g.Statements() {
		if s.PlayerID == seat {
			return true
		}
	}
	return false
}

func projectNightResult(nr engine.NightResult) NightResultView {
	v := NightResultView{
		ActedAs:  string(nr.Inner.ActedAs),
		NoOthers: nr.Inner.NoOthers,
		Failed:   nr.Inner.Failed,
		Emitted:  nr.Emitted,
	}
	for _, viewing := range nr.Inner.Viewed {
		v.Viewed = append(v.Viewed, ViewingView{Position: viewing.Pos.String(), Role: string(viewing.Role)})
	}
	for _, t := range nr.Inner.Teammates {
		v.Teammates = append(v.Teammates, seatLabel(t))
	}
	if nr.Inner.Swap != nil {
		v.Swap = &SwapView{Pos1: nr.Inner.Swap.Pos1.String(), Pos2: nr.Inner.Swap.Pos2.String()}
	}
	if nr.Inner.CopiedFrom != nil {
		v.CopiedFrom = seatLabel(*nr.Inner.CopiedFrom)
		v.CopiedRole = string(nr.Inner.CopiedRole)
	}
	return v
}

func seatLabel(idx roles.SeatIndex) string {
	return engine.SeatLabel(idx)
}
