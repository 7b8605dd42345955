package view_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskcourt/onuw/internal/decision"
	"github.com/duskcourt/onuw/internal/engine"
	"github.com/duskcourt/onuw/internal/roles"
	"github.com/duskcourt/onuw/internal/view"
)

// scriptedProvider answers every prompt with a fixed Answer, enough to
// drive a deterministic night for projector tests.
type scriptedProvider struct {
	answer decision.Answer
}

func (s scriptedProvider) Ask(_ context.Context, req decision.Request) (decision.Answer, error) {
	return s.answer, nil
}

func newProjectorGame(t *testing.T) *engine.Game {
	t.Helper()
	forced := map[engine.SeatID]roles.Role{
		"player-1": roles.Werewolf,
		"player-2": roles.Seer,
		"player-3": roles.Villager,
	}
	allRoles := []roles.Role{roles.Werewolf, roles.Seer, roles.Villager, roles.Villager, roles.Robber, roles.Tanner}
	cfg := engine.Config{
		MinPlayers:      3,
		MaxPlayers:      3,
		Roles:           allRoles,
		TimeoutProfile:  "tournament",
		ForcedRoleSeats: forced,
	}
	g, err := engine.NewGame(cfg, []string{"Alice", "Bob", "Carol"})
	require.NoError(t, err)

	for _, seat := range []engine.SeatID{"player-1", "player-2", "player-3"} {
		g.SetProvider(seat, scriptedProvider{answer: decision.Answer{}})
	}
	return g
}

func testMembers() view.Members {
	return view.Members{
		"player-1": {Name: "Alice", Connected: true, IsAI: false},
		"player-2": {Name: "Bob", Connected: true, IsAI: false},
		"player-3": {Name: "Carol", Connected: true, IsAI: true},
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	g := newProjectorGame(t)
	require.NoError(t, g.RunNight(context.Background(), func(engine.NightResult) {}))
	require.NoError(t, g.BeginDay())

	now := time.Now()
	members := testMembers()

	first := view.Project(g, "player-2", members, now)
	second := view.Project(g, "player-2", members, now)

	require.Equal(t, first, second)
}

func TestProjectNeverLeaksOtherSeatsNightResults(t *testing.T) {
	g := newProjectorGame(t)
	require.NoError(t, g.RunNight(context.Background(), func(engine.NightResult) {}))
	require.NoError(t, g.BeginDay())

	seerView := view.Project(g, "player-2", testMembers(), time.Now())
	villagerView := view.Project(g, "player-3", testMembers(), time.Now())

	require.NotEmpty(t, seerView.MyNightResults, "the seer should see its own peek result")
	require.Empty(t, villagerView.MyNightResults, "a villager has no night action and must see none of the seer's")
}

func TestProjectOmitsUnresolvedPhaseFields(t *testing.T) {
	g := newProjectorGame(t)
	require.NoError(t, g.RunNight(context.Background(), func(engine.NightResult) {}))
	require.NoError(t, g.BeginDay())

	pv := view.Project(g, "player-1", testMembers(), time.Now())

	require.Equal(t, "DAY", pv.Phase)
	require.Nil(t, pv.Votes)
	require.Nil(t, pv.Eliminated)
	require.Nil(t, pv.FinalRoles)
	require.Nil(t, pv.WinningTeams)
}

func TestProjectPublicPlayersCarryNoRoleInformation(t *testing.T) {
	g := newProjectorGame(t)
	require.NoError(t, g.RunNight(context.Background(), func(engine.NightResult) {}))
	require.NoError(t, g.BeginDay())

	pv := view.Project(g, "player-3", testMembers(), time.Now())

	require.Len(t, pv.Players, 3)
	for _, p := range pv.Players {
		require.NotEmpty(t, p.SeatID)
		require.NotEmpty(t, p.Name)
	}
	require.Equal(t, string(roles.Villager), pv.MyStartingRole)
}
