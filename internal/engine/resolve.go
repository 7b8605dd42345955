package engine

import "github.com/duskcourt/onuw/internal/roles"

// Resolve transitions VOTING -> RESOLUTION: tallies votes, applies the
// scatter/tie elimination rules, chains Hunter kills, computes effective
// teams, and evaluates win conditions independently and combined.
func (g *Game) Resolve() (*Result, error) {
	if err := g.beginPhase(PhaseVoting, PhaseResolution, nil); err != nil {
		return nil, err
	}

	counts := map[SeatID]int{}
	for _, target := range g.votes {
		counts[target]++
	}

	eliminated := g.tallyEliminations(counts)
	g.applyHunterChain(eliminated)

	for seat := range eliminated {
		if p, ok := g.playerAt(seat); ok {
			p.Alive = false
		}
	}

	finalRoles := map[SeatID]roles.Role{}
	for _, p := range g.players {
		finalRoles[p.Seat] = g.CurrentRole(p.Seat)
	}

	werewolfExists, werewolfEliminated := g.werewolfPresence(eliminated)
	village := (werewolfExists && werewolfEliminated) || (!werewolfExists && len(eliminated) == 0)
	werewolves := werewolfExists && !werewolfEliminated
	tanner := g.tannerEliminated(eliminated)

	var winningTeams []roles.Team
	if village {
		winningTeams = append(winningTeams, roles.TeamVillage)
	}
	if werewolves {
		winningTeams = append(winningTeams, roles.TeamWerewolf)
	}
	if tanner {
		winningTeams = append(winningTeams, roles.TeamTanner)
	}

	winSet := map[roles.Team]bool{}
	for _, t := range winningTeams {
		winSet[t] = true
	}
	var winningSeats []SeatID
	for _, p := range g.players {
		if winSet[g.effectiveTeam(p.Seat)] {
			winningSeats = append(winningSeats, p.Seat)
		}
	}

	elimSlice := make([]SeatID, 0, len(eliminated))
	for seat := range eliminated {
		elimSlice = append(elimSlice, seat)
	}

	result := &Result{
		Eliminated:   elimSlice,
		WinningTeams: winningTeams,
		WinningSeats: winningSeats,
		FinalRoles:   finalRoles,
		CenterRoles:  g.CenterRoles(),
	}

	g.mu.Lock()
	g.result = result
	g.mu.Unlock()

	return result, nil
}

// tallyEliminations applies resolution rules 1 and 2: a full scatter (every
// alive player received exactly one vote and every alive player voted)
// eliminates no one; otherwise every player tied at the maximum vote
// count is eliminated.
func (g *Game) tallyEliminations(counts map[SeatID]int) map[SeatID]bool {
	alive := g.aliveSeats()
	if g.isFullScatter(alive, counts) {
		return map[SeatID]bool{}
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	eliminated := map[SeatID]bool{}
	if max == 0 {
		return eliminated
	}
	for seat, c := range counts {
		if c == max {
			eliminated[seat] = true
		}
	}
	return eliminated
}

func (g *Game) isFullScatter(alive []SeatID, counts map[SeatID]int) bool {
	if len(g.votes) != len(alive) {
		return false
	}
	for _, seat := range alive {
		if counts[seat] != 1 {
			return false
		}
	}
	return true
}

// applyHunterChain implements resolution rule 3: each eliminated Hunter
// (by current role, per the documented resolution of the corresponding
// open question) also eliminates their vote target, unless already
// eliminated. The chain applies once per Hunter and does not cascade
// through a Hunter killed by this same chain.
func (g *Game) applyHunterChain(eliminated map[SeatID]bool) {
	hunters := make([]SeatID, 0)
	for seat := range eliminated {
		if g.CurrentRole(seat) == roles.Hunter {
			hunters = append(hunters, seat)
		}
	}
	for _, hunter := range hunters {
		target, voted := g.votes[hunter]
		if !voted {
			continue
		}
		if !eliminated[target] {
			eliminated[target] = true
		}
	}
}

func (g *Game) aliveSeats() []SeatID {
	out := make([]SeatID, 0, len(g.players))
	for _, p := range g.players {
		if p.Alive {
			out = append(out, p.Seat)
		}
	}
	return out
}

// effectiveTeam returns the team used for win computation: the shadow
// table's copied role for a Doppelganger, otherwise the current role.
func (g *Game) effectiveTeam(seat SeatID) roles.Team {
	if copied, ok := g.shadow.CopiedRole(seat.index()); ok {
		return roles.TeamOf(copied)
	}
	return roles.TeamOf(g.CurrentRole(seat))
}

// werewolfPresence reports whether any player's effective team is
// Werewolf, and whether any such player was eliminated.
func (g *Game) werewolfPresence(eliminated map[SeatID]bool) (exists, wasEliminated bool) {
	for _, p := range g.players {
		if g.effectiveTeam(p.Seat) != roles.TeamWerewolf {
			continue
		}
		exists = true
		if eliminated[p.Seat] {
			wasEliminated = true
		}
	}
	return exists, wasEliminated
}

// tannerEliminated reports whether a player whose *current* role (not
// effective team) is Tanner was eliminated.
func (g *Game) tannerEliminated(eliminated map[SeatID]bool) bool {
	for seat := range eliminated {
		if g.CurrentRole(seat) == roles.Tanner {
			return true
		}
	}
	return false
}
