package roles

import (
	"context"
	"strconv"
	"time"

	"github.com/duskcourt/onuw/internal/deck"
	"github.com/duskcourt/onuw/internal/decision"
)

// SeatIndex is a 0-based player seat index within one game's deck.
type SeatIndex int

// Shadow is the subset of the Doppelganger shadow table a strategy needs.
// Implemented by the engine's shadow table; kept as an interface here so
// this package never imports the engine package.
type Shadow interface {
	Record(seat SeatIndex, copied Role)
	CopiedRole(seat SeatIndex) (Role, bool)
	SeatsThatCopied(role Role) []SeatIndex
}

// Viewing is one {position, roleObserved} entry in a NightResult.
type Viewing struct {
	Pos  deck.Position
	Role Role
}

// SwapDescriptor records a swap performed by a strategy, for the acting
// player's own NightResult (never for the other party).
type SwapDescriptor struct {
	Pos1 deck.Position
	Pos2 deck.Position
}

// NightResult is the structured, append-only observation delivered to
// exactly one player after their night turn.
type NightResult struct {
	Seat       SeatIndex
	ActedAs    Role // the role whose action actually ran (differs from the seat's starting role for an in-line Doppelganger delegation)
	Viewed     []Viewing
	Teammates  []SeatIndex
	Swap       *SwapDescriptor
	CopiedFrom *SeatIndex
	CopiedRole Role
	NoOthers   bool // e.g. lone-wolf werewolf, empty mason set
	Failed     bool
	FailReason string
}

// NightContext carries everything a strategy needs to run one player's
// turn: read access to starting roles (wake-ups key off starting role,
// not current), the live deck, the shadow table, a decision provider
// scoped to the acting seat, and a hook to run another role's strategy
// in-line (used only by Doppelganger).
type NightContext struct {
	Ctx            context.Context
	Self           SeatIndex
	NumSeats       int
	StartingRoleAt func(SeatIndex) Role
	Deck           *deck.Deck
	Shadow         Shadow
	Provider       decision.Provider
	Deadline       time.Time
	ExecuteInline  func(role Role, actingSeat SeatIndex, ctx NightContext) (NightResult, error)
}

func (nc NightContext) request(kind decision.PromptKind, options []string, centerN int) decision.Request {
	return decision.Request{Kind: kind, Options: options, CenterN: centerN, Deadline: nc.Deadline}
}

func otherSeats(self SeatIndex, n int) []string {
	out := make([]string, 0, n-1)
	for i := 0; i < n; i++ {
		if SeatIndex(i) == self {
			continue
		}
		out = append(out, strconv.Itoa(i))
	}
	return out
}

func parseSeat(s string) SeatIndex {
	i, _ := strconv.Atoi(s)
	return SeatIndex(i)
}

// Strategy executes one role's night turn.
type Strategy func(NightContext) (NightResult, error)

// Strategies maps every role with a night action (orders 1-9) to its
// executable strategy. Hunter/Villager/Tanner have none and are absent.
var Strategies = map[Role]Strategy{
	Doppelganger: doppelgangerStrategy,
	Werewolf:     werewolfStrategy,
	Minion:       minionStrategy,
	Mason:        masonStrategy,
	Seer:         seerStrategy,
	Robber:       robberStrategy,
	Troublemaker: troublemakerStrategy,
	Drunk:        drunkStrategy,
	Insomniac:    insomniacStrategy,
}

func werewolfStrategy(nc NightContext) (NightResult, error) {
	var mates []SeatIndex
	for i := 0; i < nc.NumSeats; i++ {
		if SeatIndex(i) == nc.Self {
			continue
		}
		if nc.StartingRoleAt(SeatIndex(i)) == Werewolf {
			mates = append(mates, SeatIndex(i))
		}
	}
	mates = append(mates, nc.Shadow.SeatsThatCopied(Werewolf)...)
	mates = dedupExcept(mates, nc.Self)

	res := NightResult{Seat: nc.Self, ActedAs: Werewolf, Teammates: mates}
	if len(mates) == 0 {
		res.NoOthers = true
		ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectCenter, nil, 1))
		if err != nil {
			return NightResult{}, err
		}
		if len(ans.Centers) > 0 {
			pos := deck.CenterPos(ans.Centers[0])
			res.Viewed = append(res.Viewed, Viewing{Pos: pos, Role: nc.Deck.RoleAt(pos)})
		}
	}
	return res, nil
}

func minionStrategy(nc NightContext) (NightResult, error) {
	var mates []SeatIndex
	for i := 0; i < nc.NumSeats; i++ {
		if nc.StartingRoleAt(SeatIndex(i)) == Werewolf {
			mates = append(mates, SeatIndex(i))
		}
	}
	mates = append(mates, nc.Shadow.SeatsThatCopied(Werewolf)...)
	return NightResult{Seat: nc.Self, ActedAs: Minion, Teammates: dedupExcept(mates, -1)}, nil
}

func masonStrategy(nc NightContext) (NightResult, error) {
	var mates []SeatIndex
	for i := 0; i < nc.NumSeats; i++ {
		if SeatIndex(i) == nc.Self {
			continue
		}
		if nc.StartingRoleAt(SeatIndex(i)) == Mason {
			mates = append(mates, SeatIndex(i))
		}
	}
	res := NightResult{Seat: nc.Self, ActedAs: Mason, Teammates: mates}
	res.NoOthers = len(mates) == 0
	return res, nil
}

func seerStrategy(nc NightContext) (NightResult, error) {
	modeAns, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSeerChoice, nil, 0))
	if err != nil {
		return NightResult{}, err
	}
	res := NightResult{Seat: nc.Self, ActedAs: Seer}
	if modeAns.SeerMode == "player" {
		ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectPlayer, otherSeats(nc.Self, nc.NumSeats), 0))
		if err != nil {
			return NightResult{}, err
		}
		pos := deck.Seat(int(parseSeat(ans.Player)))
		res.Viewed = append(res.Viewed, Viewing{Pos: pos, Role: nc.Deck.RoleAt(pos)})
		return res, nil
	}
	ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectCenter, nil, 2))
	if err != nil {
		return NightResult{}, err
	}
	for _, c := range ans.Centers {
		pos := deck.CenterPos(c)
		res.Viewed = append(res.Viewed, Viewing{Pos: pos, Role: nc.Deck.RoleAt(pos)})
	}
	return res, nil
}

func robberStrategy(nc NightContext) (NightResult, error) {
	ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectPlayer, otherSeats(nc.Self, nc.NumSeats), 0))
	if err != nil {
		return NightResult{}, err
	}
	target := deck.Seat(int(parseSeat(ans.Player)))
	self := deck.Seat(int(nc.Self))
	nc.Deck.Swap(self, target)
	newRole := nc.Deck.RoleAt(self)
	return NightResult{
		Seat:    nc.Self,
		ActedAs: Robber,
		Swap:    &SwapDescriptor{Pos1: self, Pos2: target},
		Viewed:  []Viewing{{Pos: self, Role: newRole}},
	}, nil
}

func troublemakerStrategy(nc NightContext) (NightResult, error) {
	ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectTwoPlayers, otherSeats(nc.Self, nc.NumSeats), 0))
	if err != nil {
		return NightResult{}, err
	}
	if len(ans.TwoPlayers) < 2 {
		return NightResult{Seat: nc.Self, ActedAs: Troublemaker, Failed: true, FailReason: "insufficient targets"}, nil
	}
	p1 := deck.Seat(int(parseSeat(ans.TwoPlayers[0])))
	p2 := deck.Seat(int(parseSeat(ans.TwoPlayers[1])))
	nc.Deck.Swap(p1, p2)
	return NightResult{Seat: nc.Self, ActedAs: Troublemaker, Swap: &SwapDescriptor{Pos1: p1, Pos2: p2}}, nil
}

func drunkStrategy(nc NightContext) (NightResult, error) {
	ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectCenter, nil, 1))
	if err != nil {
		return NightResult{}, err
	}
	centerIdx := 0
	if len(ans.Centers) > 0 {
		centerIdx = ans.Centers[0]
	}
	self := deck.Seat(int(nc.Self))
	center := deck.CenterPos(centerIdx)
	nc.Deck.Swap(self, center)
	// No observation: the Drunk must never learn the new role.
	return NightResult{Seat: nc.Self, ActedAs: Drunk, Swap: &SwapDescriptor{Pos1: self, Pos2: center}}, nil
}

func insomniacStrategy(nc NightContext) (NightResult, error) {
	self := deck.Seat(int(nc.Self))
	return NightResult{
		Seat:    nc.Self,
		ActedAs: Insomniac,
		Viewed:  []Viewing{{Pos: self, Role: nc.Deck.RoleAt(self)}},
	}, nil
}

func doppelgangerStrategy(nc NightContext) (NightResult, error) {
	ans, err := nc.Provider.Ask(nc.Ctx, nc.request(decision.PromptSelectPlayer, otherSeats(nc.Self, nc.NumSeats), 0))
	if err != nil {
		return NightResult{}, err
	}
	targetSeat := parseSeat(ans.Player)
	copiedRole := nc.StartingRoleAt(targetSeat)
	nc.Shadow.Record(nc.Self, copiedRole)

	res := NightResult{
		Seat:       nc.Self,
		ActedAs:    Doppelganger,
		CopiedFrom: &targetSeat,
		CopiedRole: copiedRole,
	}

	order := WakeOrder(copiedRole)
	if order != NoNightAction && order <= 9 {
		inline, err := nc.ExecuteInline(copiedRole, nc.Self, nc)
		if err != nil {
			return NightResult{}, err
		}
		res.Viewed = append(res.Viewed, inline.Viewed...)
		res.Teammates = inline.Teammates
		res.Swap = inline.Swap
		res.NoOthers = inline.NoOthers
	}
	// If copiedRole is Insomniac, the order-10 wake is scheduled by the
	// engine's night runner by consulting the shadow table directly; no
	// further action is taken here.
	return res, nil
}

func dedupExcept(in []SeatIndex, except SeatIndex) []SeatIndex {
	seen := map[SeatIndex]bool{}
	var out []SeatIndex
	for _, s := range in {
		if s == except || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
