// Package roles holds the static One Night Ultimate Werewolf role catalog
// and the per-role night-action strategies that mutate deck state.
package roles

import "sort"

// Team is the affiliation used for win computation.
type Team string

const (
	TeamVillage  Team = "VILLAGE"
	TeamWerewolf Team = "WEREWOLF"
	TeamTanner   Team = "TANNER"
)

// Role identifies one of the twelve catalog roles.
type Role string

const (
	Doppelganger Role = "DOPPELGANGER"
	Werewolf     Role = "WEREWOLF"
	Minion       Role = "MINION"
	Mason        Role = "MASON"
	Seer         Role = "SEER"
	Robber       Role = "ROBBER"
	Troublemaker Role = "TROUBLEMAKER"
	Drunk        Role = "DRUNK"
	Insomniac    Role = "INSOMNIAC"
	Villager     Role = "VILLAGER"
	Hunter       Role = "HUNTER"
	Tanner       Role = "TANNER"
)

// NoNightAction marks a role with no wake order.
const NoNightAction = -1

// DoppelInsomniacOrder is the special order-10 wake reserved for
// Doppelgangers who copied Insomniac.
const DoppelInsomniacOrder = 10

// Catalog entries are immutable for the lifetime of the process.
type Catalog struct {
	Role        Role
	Team        Team
	WakeOrder   int
	Description string
}

// Roles is the full, ordered role table. Built once at init and never
// mutated afterwards.
var Roles = []Catalog{
	{Doppelganger, TeamVillage, 1, "Copies another player's role and acts as them."},
	{Werewolf, TeamWerewolf, 2, "Wakes with other werewolves; lone wolf may peek a center card."},
	{Minion, TeamWerewolf, 3, "Learns the werewolves without being seen by them."},
	{Mason, TeamVillage, 4, "Wakes to see other masons."},
	{Seer, TeamVillage, 5, "Views another player's card or two center cards."},
	{Robber, TeamVillage, 6, "Swaps their card with another player's and views the result."},
	{Troublemaker, TeamVillage, 7, "Swaps two other players' cards without looking."},
	{Drunk, TeamVillage, 8, "Swaps blindly with a center card."},
	{Insomniac, TeamVillage, 9, "Views their own card at the end of the night."},
	{Villager, TeamVillage, NoNightAction, "No night action."},
	{Hunter, TeamVillage, NoNightAction, "If eliminated, also eliminates their vote target."},
	{Tanner, TeamTanner, NoNightAction, "Wins alone if eliminated."},
}

var byRole = map[Role]Catalog{}

func init() {
	for _, c := range Roles {
		byRole[c.Role] = c
	}
}

// Lookup returns the catalog entry for a role. ok is false for an unknown
// role string (e.g. malformed config).
func Lookup(r Role) (Catalog, bool) {
	c, ok := byRole[r]
	return c, ok
}

// TeamOf returns the team of a role, or "" if unknown.
func TeamOf(r Role) Team {
	return byRole[r].Team
}

// WakeOrder returns the wake order of a role, or NoNightAction if the role
// never wakes (or is unknown).
func WakeOrder(r Role) int {
	c, ok := byRole[r]
	if !ok {
		return NoNightAction
	}
	return c.WakeOrder
}

// NightOrders returns the distinct wake orders 1..9 present in the
// catalog, ascending. Order 10 (Doppel-Insomniac) is handled separately
// by the engine since it is not a role's own wake order but a derived one.
func NightOrders() []int {
	set := map[int]bool{}
	for _, c := range Roles {
		if c.WakeOrder != NoNightAction {
			set[c.WakeOrder] = true
		}
	}
	orders := make([]int, 0, len(set))
	for o := range set {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	return orders
}

// RolesAtOrder returns every role whose wake order equals order.
func RolesAtOrder(order int) []Role {
	var out []Role
	for _, c := range Roles {
		if c.WakeOrder == order {
			out = append(out, c.Role)
		}
	}
	return out
}
