// Package engine implements the phase-driven game state machine: setup,
// the ordered night, the day, simultaneous voting, and resolution.
package engine

import (
	"fmt"
	"time"

	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/roles"
)

// SeatID is the stable engine-internal player identifier, "player-1"
// through "player-N" in seat order, independent of external/room identity.
type SeatID string

func seatID(i int) SeatID { return SeatID(fmt.Sprintf("player-%d", i+1)) }

// SeatLabel converts a roles.SeatIndex (0-based) to its engine SeatID
// string form, for packages (like view) that receive bare indices out of
// a roles.NightResult and need to address them as engine seats.
func SeatLabel(idx roles.SeatIndex) string { return string(seatID(int(idx))) }

func (s SeatID) index() roles.SeatIndex {
	var n int
	fmt.Sscanf(string(s), "player-%d", &n)
	return roles.SeatIndex(n - 1)
}

// Phase is one state of the game state machine.
type Phase string

const (
	PhaseSetup      Phase = "SETUP"
	PhaseNight      Phase = "NIGHT"
	PhaseDay        Phase = "DAY"
	PhaseVoting     Phase = "VOTING"
	PhaseResolution Phase = "RESOLUTION"
)

// Player is the engine-internal record for one seat.
type Player struct {
	Seat         SeatID
	Name         string
	StartingRole roles.Role
	Alive        bool
}

// NightResult is the structured, per-player night observation, re-exported
// from roles with the seat addressed by engine SeatID for convenience at
// this layer's boundary.
type NightResult struct {
	Seat    SeatID
	Role    roles.Role // the acting player's own starting role
	Inner   roles.NightResult
	Emitted time.Time
}

// Statement is one public day-phase message.
type Statement struct {
	PlayerID  SeatID
	Text      string
	Timestamp time.Time
}

// Vote maps voter seat to target seat, populated simultaneously and
// revealed atomically at voting close.
type Vote map[SeatID]SeatID

// PendingDecision describes one outstanding prompt.
type PendingDecision struct {
	RequestID string
	Seat      SeatID
	Kind      decision.PromptKind
	Options   []string
	Deadline  time.Time
}

// Config is the authoritative room configuration consumed at setup.
type Config struct {
	MinPlayers      int
	MaxPlayers      int
	Roles           []roles.Role // length must equal MaxPlayers + deck.CenterSlots
	TimeoutProfile  string
	ForcedRoleSeats map[SeatID]roles.Role // debug-only overrides
}

// Result is the terminal outcome of RESOLUTION.
type Result struct {
	Eliminated    []SeatID
	WinningTeams  []roles.Team
	WinningSeats  []SeatID
	FinalRoles    map[SeatID]roles.Role
	CenterRoles   [3]roles.Role
	NoWinner      bool // set when an unrecoverable internal error ends the game
}
