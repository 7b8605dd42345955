package decision

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Pusher delivers an actionRequired prompt to a human's channel and is
// implemented by the room, which forwards each prompt through its Outbox
// to the gateway. HumanProvider itself never touches a websocket.
type Pusher interface {
	PushActionRequired(requestID string, req Request) error
}

// HumanProvider answers prompts by pushing them over a channel (via
// Pusher) and waiting for a matching actionResponse, falling back to the
// documented default on deadline or cancellation.
type HumanProvider struct {
	push Pusher

	mu      sync.Mutex
	pending map[string]pendingPrompt
}

type pendingPrompt struct {
	req Request
	ch  chan Answer
}

// NewHumanProvider builds a provider bound to one seat's outbound pusher.
func NewHumanProvider(push Pusher) *HumanProvider {
	return &HumanProvider{push: push, pending: map[string]pendingPrompt{}}
}

// Ask pushes req to the human and blocks until a matching Resolve call,
// ctx cancellation (treated as "cancelled", answered with the default),
// or the request's own deadline elapses.
func (h *HumanProvider) Ask(ctx context.Context, req Request) (Answer, error) {
	requestID := uuid.NewString()
	ch := make(chan Answer, 1)

	h.mu.Lock()
	h.pending[requestID] = pendingPrompt{req: req, ch: ch}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, requestID)
		h.mu.Unlock()
	}()

	if err := h.push.PushActionRequired(requestID, req); err != nil {
		return DefaultAnswer(req), nil
	}

	askCtx := ctx
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	select {
	case ans := <-ch:
		return ans, nil
	case <-askCtx.Done():
		return DefaultAnswer(req), nil
	}
}

// Resolve delivers a client's actionResponse to the matching pending
// prompt. A requestID with no matching pending prompt (already resolved,
// timed out, or unknown) is silently discarded — late or duplicate
// responses must never re-resolve a prompt.
func (h *HumanProvider) Resolve(requestID string, ans Answer) bool {
	h.mu.Lock()
	p, ok := h.pending[requestID]
	if ok {
		delete(h.pending, requestID)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	p.ch <- ans
	return true
}

// ResolvePendingWithAI settles every prompt currently awaiting this
// seat's human with ai's computed answer, used at grace-period expiry so
// a mid-prompt disconnect does not stall the phase that issued it.
func (h *HumanProvider) ResolvePendingWithAI(ai *AIProvider) {
	h.mu.Lock()
	pending := h.pending
	h.pending = map[string]pendingPrompt{}
	h.mu.Unlock()

	for _, p := range pending {
		p.ch <- ai.Answer(p.req)
	}
}
