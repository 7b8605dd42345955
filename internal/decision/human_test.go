package decision_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskcourt/onuw/internal/decision"
)

type recordingPusher struct {
	requestID string
}

func (p *recordingPusher) PushActionRequired(requestID string, _ decision.Request) error {
	p.requestID = requestID
	return nil
}

func TestHumanProviderAskResolvesOnMatchingResponse(t *testing.T) {
	pusher := &recordingPusher{}
	h := decision.NewHumanProvider(pusher)

	done := make(chan decision.Answer, 1)
	go func() {
		ans, err := h.Ask(context.Background(), decision.Request{Kind: decision.PromptSelectPlayer, Options: []string{"player-2"}})
		require.NoError(t, err)
		done <- ans
	}()

	require.Eventually(t, func() bool { return pusher.requestID != "" }, time.Second, time.Millisecond)
	require.True(t, h.Resolve(pusher.requestID, decision.Answer{Player: "player-2"}))

	ans := <-done
	require.Equal(t, "player-2", ans.Player)
}

// TestHumanProviderAskDefaultsOnOwnDeadline pins down the bug this test
// was added to catch: Ask must honor req.Deadline even when the caller's
// ctx never cancels on its own, per DefaultAnswer's documented fallback.
func TestHumanProviderAskDefaultsOnOwnDeadline(t *testing.T) {
	h := decision.NewHumanProvider(&recordingPusher{})

	req := decision.Request{
		Kind:     decision.PromptSelectPlayer,
		Options:  []string{"player-2"},
		Deadline: time.Now().Add(20 * time.Millisecond),
	}

	start := time.Now()
	ans, err := h.Ask(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ans.WasDefaulted)
	require.Less(t, time.Since(start), time.Second)
}

func TestHumanProviderAskDefaultsOnContextCancellation(t *testing.T) {
	h := decision.NewHumanProvider(&recordingPusher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan decision.Answer, 1)
	go func() {
		ans, err := h.Ask(ctx, decision.Request{Kind: decision.PromptSelectPlayer, Options: []string{"player-2"}})
		require.NoError(t, err)
		done <- ans
	}()

	cancel()
	ans := <-done
	require.True(t, ans.WasDefaulted)
}

func TestResolveIgnoresUnknownRequestID(t *testing.T) {
	h := decision.NewHumanProvider(&recordingPusher{})
	require.False(t, h.Resolve("no-such-request", decision.Answer{}))
}

func TestResolvePendingWithAISettlesOutstandingAsk(t *testing.T) {
	pusher := &recordingPusher{}
	h := decision.NewHumanProvider(pusher)

	done := make(chan decision.Answer, 1)
	go func() {
		ans, err := h.Ask(context.Background(), decision.Request{Kind: decision.PromptVote, Options: []string{"player-2"}})
		require.NoError(t, err)
		done <- ans
	}()

	require.Eventually(t, func() bool { return pusher.requestID != "" }, time.Second, time.Millisecond)

	ai := decision.NewAIProvider(decision.SeatID("player-1"), decision.RandomPolicy{})
	h.ResolvePendingWithAI(ai)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ResolvePendingWithAI did not unblock the pending Ask")
	}
}
