package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/commitforge/commitforge-backend/pkg/redis"
)

// IdempotencyGuard remembers processed event IDs for a retention window so
// provider redeliveries become no-ops.
type IdempotencyGuard struct {
	store  redis.IdempotencyStore
	ttl    time.Duration
	keyFor func(eventID string) string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case scope == "":
		return nil, errors.New("scope is required")
	case strings.Contains(scope, ":"):
		// Colons are the key separator; a scope carrying one would alias
		// another namespace.
		return nil, errors.New("scope must not contain ':'")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		keyFor: func(eventID string) string {
			return store.IdempotencyKey(scope, eventID)
		},
	}, nil
}

// CheckAndMark claims the event ID. It returns true when the event was seen
// before.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.keyFor(eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the claim so a failed event can be retried by the provider.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.keyFor(eventID))
}
