package deposits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paywallet/paywallet-backend/pkg/redis"
)

// IdempotencyGuard drops webhook redeliveries before they reach the ledger.
// The database-level reference check remains the source of truth; the guard
// only saves the round trip for the common redelivery case.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the reference was already seen and marks it
// as seen in the same call.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, reference string) (bool, error) {
	if reference == "" {
		return false, errors.New("reference is required")
	}
	key := g.store.IdempotencyKey(g.scope, reference)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete unmarks a reference so a failed delivery can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, reference string) error {
	if reference == "" {
		return errors.New("reference is required")
	}
	key := g.store.IdempotencyKey(g.scope, reference)
	return g.store.Del(ctx, key)
}
