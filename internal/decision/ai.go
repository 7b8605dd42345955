package decision

import (
	"context"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Policy computes an AI answer for each prompt kind. The shipped default
// implementation is intentionally simple — the concrete decision policy
// is out of scope; only this port and a usable default are.
type Policy interface {
	SelectPlayer(options []string) string
	SelectTwoPlayers(options []string) []string
	SelectCenter(n int) []int
	SeerChoice() string
	MakeStatement(seat SeatID) string
	Vote(eligible []string) string
}

// RandomPolicy is the shipped default Policy: uniformly random choices,
// a generic statement, and no attempt at strategy.
type RandomPolicy struct{}

func (RandomPolicy) SelectPlayer(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.Intn(len(options))]
}

func (RandomPolicy) SelectTwoPlayers(options []string) []string {
	if len(options) < 2 {
		return options
	}
	perm := rand.Perm(len(options))
	return []string{options[perm[0]], options[perm[1]]}
}

func (RandomPolicy) SelectCenter(n int) []int {
	perm := rand.Perm(3)
	if n > 3 {
		n = 3
	}
	out := append([]int(nil), perm[:n]...)
	return out
}

func (RandomPolicy) SeerChoice() string {
	if rand.Intn(2) == 0 {
		return "player"
	}
	return "center"
}

func (RandomPolicy) MakeStatement(seat SeatID) string {
	return "I have nothing unusual to report."
}

func (RandomPolicy) Vote(eligible []string) string {
	if len(eligible) == 0 {
		return ""
	}
	return eligible[rand.Intn(len(eligible))]
}

// AIProvider answers prompts locally via a Policy, guarded by a circuit
// breaker so a misbehaving policy backend (e.g. a remote model call)
// degrades to the documented prompt defaults instead of stalling a
// parallel vote round.
type AIProvider struct {
	policy  Policy
	seat    SeatID
	breaker *gobreaker.CircuitBreaker
}

// NewAIProvider builds an AI-backed provider for one seat.
func NewAIProvider(seat SeatID, policy Policy) *AIProvider {
	st := gobreaker.Settings{
		Name:        "ai-policy-" + string(seat),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &AIProvider{policy: policy, seat: seat, breaker: gobreaker.NewCircuitBreaker(st)}
}

func (p *AIProvider) Ask(ctx context.Context, req Request) (Answer, error) {
	return p.Answer(req), nil
}

// Answer computes this provider's answer to req outside of the Ask/ctx
// path, used to immediately settle a prompt a human seat had pending at
// the moment of AI takeover.
func (p *AIProvider) Answer(req Request) Answer {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.compute(req), nil
	})
	if err != nil {
		// The breaker rejected the call (open, or half-open with its
		// trial request already in flight): fall back to the documented
		// deterministic default rather than stalling. A panic inside the
		// policy is not turned into a default here; Execute re-raises it.
		return DefaultAnswer(req)
	}
	return result.(Answer)
}

func (p *AIProvider) compute(req Request) Answer {
	switch req.Kind {
	case PromptSelectPlayer:
		return Answer{Player: p.policy.SelectPlayer(req.Options)}
	case PromptSelectTwoPlayers:
		return Answer{TwoPlayers: p.policy.SelectTwoPlayers(req.Options)}
	case PromptSelectCenter:
		return Answer{Centers: p.policy.SelectCenter(req.CenterN)}
	case PromptSeerChoice:
		return Answer{SeerMode: p.policy.SeerChoice()}
	case PromptMakeStatement:
		return Answer{Statement: p.policy.MakeStatement(p.seat)}
	case PromptVote:
		return Answer{Player: p.policy.Vote(req.Options)}
	default:
		return DefaultAnswer(req)
	}
}
