package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/engine"
	"github.com/duskcourt/onuw/internal/roles"
)

// scriptedProvider answers one prompt kind with a fixed Answer, useful for
// pinning a seat's single night decision in a scenario test.
type scriptedProvider struct {
	answer decision.Answer
}

func (s scriptedProvider) Ask(_ context.Context, req decision.Request) (decision.Answer, error) {
	return s.answer, nil
}

func bindScripted(g *engine.Game, seat engine.SeatID, ans decision.Answer) {
	g.SetProvider(seat, scriptedProvider{answer: ans})
}

func newSetupGame(t *testing.T, names []string, forced map[engine.SeatID]roles.Role, allRoles []roles.Role) *engine.Game {
	t.Helper()
	cfg := engine.Config{
		MinPlayers:      3,
		MaxPlayers:      len(names),
		Roles:           allRoles,
		TimeoutProfile:  "tournament",
		ForcedRoleSeats: forced,
	}
	g, err := engine.NewGame(cfg, names)
	require.NoError(t, err)
	return g
}

// Scenario 1: Seer views center.
func TestScenarioSeerViewsCenter(t *testing.T) {
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Werewolf,
		"player-2": roles.Seer,
		"player-3": roles.Villager,
	}
	allRoles := []roles.Role{roles.Werewolf, roles.Seer, roles.Villager, roles.Villager, roles.Robber, roles.Tanner}
	g := newSetupGame(t, []string{"Alice", "Bob", "Carol"}, forced, allRoles)

	bindScripted(g, "player-2", decision.Answer{SeerMode: "center", Centers: []int{0, 2}})
	bindScripted(g, "player-1", decision.Answer{}) // lone wolf default center peek path

	var bobResults []engine.NightResult
	err := g.RunNight(context.Background(), func(nr engine.NightResult) {
		if nr.Seat == "player-2" {
			bobResults = append(bobResults, nr)
		}
	})
	require.NoError(t, err)
	require.Len(t, bobResults, 1)
	require.Len(t, bobResults[0].Inner.Viewed, 2)
	require.Equal(t, 0, bobResults[0].Inner.Viewed[0].Pos.Index)
	require.True(t, bobResults[0].Inner.Viewed[0].Pos.Center)
}

// Scenario 2: Robber steals.
func TestScenarioRobberSteals(t *testing.T) {
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Werewolf,
		"player-2": roles.Robber,
		"player-3": roles.Villager,
	}
	allRoles := []roles.Role{roles.Werewolf, roles.Robber, roles.Villager, roles.Villager, roles.Seer, roles.Tanner}
	g := newSetupGame(t, []string{"Alice", "Bob", "Carol"}, forced, allRoles)

	bindScripted(g, "player-2", decision.Answer{Player: "0"}) // Bob robs Alice (seat 0)

	var aliceNoOthers, bobSwap bool
	err := g.RunNight(context.Background(), func(nr engine.NightResult) {
		if nr.Seat == "player-1" && nr.Inner.NoOthers {
			aliceNoOthers = true
		}
		if nr.Seat == "player-2" && nr.Inner.Swap != nil {
			bobSwap = true
			require.Equal(t, roles.Werewolf, nr.Inner.Viewed[0].Role)
		}
	})
	require.NoError(t, err)
	require.True(t, aliceNoOthers, "Alice's werewolf wake should report no other werewolves, based on starting roles before the swap")
	require.True(t, bobSwap)
	require.Equal(t, roles.Robber, g.CurrentRole("player-1"))
	require.Equal(t, roles.Werewolf, g.CurrentRole("player-2"))
}

// Scenario 3: Troublemaker swaps strangers.
func TestScenarioTroublemakerSwapsStrangers(t *testing.T) {
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Villager,
		"player-2": roles.Troublemaker,
		"player-3": roles.Werewolf,
	}
	allRoles := []roles.Role{roles.Villager, roles.Troublemaker, roles.Werewolf, roles.Villager, roles.Seer, roles.Tanner}
	g := newSetupGame(t, []string{"Alice", "Bob", "Carol"}, forced, allRoles)

	before1, before3 := g.CurrentRole("player-1"), g.CurrentRole("player-3")
	bindScripted(g, "player-2", decision.Answer{TwoPlayers: []string{"0", "2"}})

	var bobResult *engine.NightResult
	err := g.RunNight(context.Background(), func(nr engine.NightResult) {
		if nr.Seat == "player-2" {
			r := nr
			bobResult = &r
		}
	})
	require.NoError(t, err)
	require.NotNil(t, bobResult)
	require.NotNil(t, bobResult.Inner.Swap)
	require.Empty(t, bobResult.Inner.Viewed, "Troublemaker learns nothing beyond the swap record")
	require.Equal(t, before3, g.CurrentRole("player-1"))
	require.Equal(t, before1, g.CurrentRole("player-3"))
}

// Scenario 4: vote scatter.
func TestScenarioVoteScatter(t *testing.T) {
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Villager,
		"player-2": roles.Villager,
		"player-3": roles.Villager,
	}
	allRoles := []roles.Role{roles.Villager, roles.Villager, roles.Villager, roles.Villager, roles.Seer, roles.Tanner}
	g := runToVoting(t, []string{"Alice", "Bob", "Carol"}, forced, allRoles)

	bindScripted(g, "player-1", decision.Answer{Player: "player-2"})
	bindScripted(g, "player-2", decision.Answer{Player: "player-3"})
	bindScripted(g, "player-3", decision.Answer{Player: "player-1"})

	_, err := g.RunVoting(context.Background())
	require.NoError(t, err)
	result, err := g.Resolve()
	require.NoError(t, err)
	require.Empty(t, result.Eliminated)
	require.Empty(t, result.WinningTeams, "no werewolf exists among players, so no team wins a scatter")
}

// Scenario 5: Hunter chain.
func TestScenarioHunterChain(t *testing.T) {
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Hunter,
		"player-2": roles.Werewolf,
		"player-3": roles.Villager,
	}
	allRoles := []roles.Role{roles.Hunter, roles.Werewolf, roles.Villager, roles.Villager, roles.Seer, roles.Tanner}
	g := runToVoting(t, []string{"Alice", "Bob", "Carol"}, forced, allRoles)

	bindScripted(g, "player-1", decision.Answer{Player: "player-2"}) // Alice (Hunter) votes Bob
	bindScripted(g, "player-2", decision.Answer{Player: "player-1"}) // Bob votes Alice back
	bindScripted(g, "player-3", decision.Answer{Player: "player-1"}) // Carol also votes Alice: Alice has max votes

	_, err := g.RunVoting(context.Background())
	require.NoError(t, err)
	result, err := g.Resolve()
	require.NoError(t, err)
	require.Contains(t, result.Eliminated, engine.SeatID("player-1"))
	require.Contains(t, result.Eliminated, engine.SeatID("player-2"), "Hunter chain must eliminate Alice's vote target")
	require.Contains(t, result.WinningTeams, roles.TeamVillage)
}

// Scenario 6: Doppelganger copies Werewolf.
func TestScenarioDoppelgangerCopiesWerewolf(t *testing.T) {
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Werewolf,
		"player-2": roles.Doppelganger,
		"player-3": roles.Villager,
	}
	allRoles := []roles.Role{roles.Werewolf, roles.Doppelganger, roles.Villager, roles.Villager, roles.Seer, roles.Tanner}
	g := newSetupGame(t, []string{"Alice", "Bob", "Carol"}, forced, allRoles)

	bindScripted(g, "player-2", decision.Answer{Player: "0"}) // Bob (Doppelganger) copies Alice (seat 0, Werewolf)

	var aliceTeammates []roles.SeatIndex
	err := g.RunNight(context.Background(), func(nr engine.NightResult) {
		if nr.Seat == "player-1" {
			aliceTeammates = nr.Inner.Teammates
		}
	})
	require.NoError(t, err)
	require.Len(t, aliceTeammates, 1)
	require.Equal(t, roles.SeatIndex(1), aliceTeammates[0])

	// No elimination needed to observe effective team; verify directly via
	// a trivial all-scatter vote so Resolve() can run.
	require.NoError(t, g.BeginDay())
	require.NoError(t, g.BeginVoting())
	bindScripted(g, "player-1", decision.Answer{Player: "player-2"})
	bindScripted(g, "player-2", decision.Answer{Player: "player-3"})
	bindScripted(g, "player-3", decision.Answer{Player: "player-1"})
	_, err = g.RunVoting(context.Background())
	require.NoError(t, err)
	result, err := g.Resolve()
	require.NoError(t, err)
	require.Contains(t, result.WinningTeams, roles.TeamWerewolf, "effective team of seat 2 (Doppelganger who copied Werewolf) is Werewolf")
}

func runToVoting(t *testing.T, names []string, forced map[engine.SeatID]roles.Role, allRoles []roles.Role) *engine.Game {
	t.Helper()
	g := newSetupGame(t, names, forced, allRoles)
	for _, name := range names {
		_ = name
	}
	err := g.RunNight(context.Background(), func(engine.NightResult) {})
	require.NoError(t, err)
	require.NoError(t, g.BeginDay())
	require.NoError(t, g.BeginVoting())
	return g
}

var _ = time.Second
