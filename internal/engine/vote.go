package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duskcourt/onuw/internal/apperr"
	"github.com/duskcourt/onuw/internal/decision"
)

// BeginVoting transitions DAY -> VOTING.
func (g *Game) BeginVoting() error {
	return g.beginPhase(PhaseDay, PhaseVoting, func() {
		g.voteOpen = true
		g.votes = Vote{}
		g.phaseDeadline = time.Now().Add(g.timeout.Voting)
	})
}

// RunVoting issues a vote prompt to every alive seat in parallel and
// awaits all, per the engine's single-suspension-point concurrency rule
// for the vote phase. Votes are collected internally and not exposed via
// Votes() until the vote closes (g.voteOpen cleared).
func (g *Game) RunVoting(ctx context.Context) (Vote, error) {
	if g.Phase() != PhaseVoting {
		return nil, apperr.New(apperr.KindState, apperr.CodeInvalidPhase, "RunVoting requires VOTING phase")
	}

	eligible := make([]string, 0, len(g.players))
	for _, p := range g.players {
		if p.Alive {
			eligible = append(eligible, string(p.Seat))
		}
	}

	deadline := g.PhaseDeadline()
	deadlineCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	grp, gctx := errgroup.WithContext(context.Background())
	results := make(chan struct {
		seat   SeatID
		target SeatID
	}, len(eligible))

	for _, p := range g.players {
		if !p.Alive {
			continue
		}
		seat := p.Seat
		grp.Go(func() error {
			req := decision.Request{
				Kind:     decision.PromptVote,
				Seat:     decision.SeatID(seat),
				Options:  removeSelf(eligible, string(seat)),
				Deadline: deadline,
			}
			ans, err := g.providerFor(seat).Ask(deadlineCtx, req)
			if err != nil {
				ans = decision.DefaultAnswer(req)
			}
			target := SeatID(ans.Player)
			if target == "" {
				def := decision.DefaultAnswer(req)
				target = SeatID(def.Player)
			}
			select {
			case results <- struct {
				seat   SeatID
				target SeatID
			}{seat, target}:
			case <-gctx.Done():
			}
			return nil
		})
	}

	// grp.Wait never returns an error: individual Ask failures are
	// absorbed into the documented default above so one flaky seat never
	// aborts the whole parallel fan-out.
	_ = grp.Wait()
	close(results)

	g.mu.Lock()
	for r := range results {
		g.votes[r.seat] = r.target
	}
	g.voteOpen = false
	g.mu.Unlock()

	return g.Votes(), nil
}

func removeSelf(options []string, self string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if o != self {
			out = append(out, o)
		}
	}
	return out
}
