package deck_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duskcourt/onuw/internal/deck"
	"github.com/duskcourt/onuw/internal/roles"
)

func newTestDeck() *deck.Deck {
	seats := []roles.Role{roles.Werewolf, roles.Seer, roles.Villager}
	center := [deck.CenterSlots]roles.Role{roles.Villager, roles.Robber, roles.Tanner}
	return deck.New(seats, center)
}

func TestSwapRoundTrip(t *testing.T) {
	d := newTestDeck()
	before := append([]roles.Role(nil), d.Roles()...)

	a := deck.Seat(0)
	b := deck.CenterPos(1)

	d.Swap(a, b)
	require.NotEqual(t, before, d.Roles())

	d.Swap(a, b)
	require.Equal(t, before, d.Roles())
	require.Len(t, d.AuditLog(), 2)
}

func TestSwapConservesMultiset(t *testing.T) {
	d := newTestDeck()
	before := rolesSorted(d.Roles())

	d.Swap(deck.Seat(0), deck.Seat(2))
	d.Swap(deck.Seat(1), deck.CenterPos(0))

	require.Equal(t, before, rolesSorted(d.Roles()))
}

func TestSelfSwapIsNoOpButAudited(t *testing.T) {
	d := newTestDeck()
	before := append([]roles.Role(nil), d.Roles()...)

	d.Swap(deck.Seat(0), deck.Seat(0))

	require.Equal(t, before, d.Roles())
	require.Len(t, d.AuditLog(), 1)
}

func rolesSorted(rs []roles.Role) []roles.Role {
	out := append([]roles.Role(nil), rs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
