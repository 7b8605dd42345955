// Package ratelimit enforces per-connection inbound message rates,
// backed by Redis when configured and falling back to an in-memory store
// otherwise, grounded on the session-gateway reference implementation's
// NewRateLimiter fallback construction.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/duskcourt/onuw/internal/logging"
)

// Limiter enforces one rate per connection, keyed by the gateway session's
// per-connection id (a fresh UUID for each connection, not the player id),
// matching one inbound-message budget.
type Limiter struct {
	inbound *limiter.Limiter
}

// New builds a Limiter. When redisAddr is empty, an in-memory store is
// used (single-process only; fine for one server instance). When Redis is
// configured but does not answer a ping, a warning is logged and the
// in-memory store is used instead, mirroring the reference
// implementation's fallback path.
func New(redisAddr string, formattedRate string) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", formattedRate, err)
	}

	var store limiter.Store
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logging.Get().Warn("redis unavailable, falling back to in-memory rate limit store")
			store = memory.NewStore()
		} else {
			store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "onuw_ratelimit"})
			if err != nil {
				return nil, fmt.Errorf("build redis rate limit store: %w", err)
			}
		}
	} else {
		store = memory.NewStore()
	}

	return &Limiter{inbound: limiter.New(store, rate)}, nil
}

// Allow reports whether sessionKey may send another inbound message right
// now. On store error it "fails open" (allows the message) but logs, the
// same trade-off the reference implementation makes for availability.
func (l *Limiter) Allow(ctx context.Context, sessionKey string) bool {
	ctxRes, err := l.inbound.Get(ctx, sessionKey)
	if err != nil {
		logging.Get().Warn("rate limit store error, failing open")
		return true
	}
	return !ctxRes.Reached
}
