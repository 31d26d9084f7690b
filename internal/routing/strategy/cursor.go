package strategy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CursorStore hands out monotonically increasing per-rule cursor values for
// round-robin rotation. Next must be atomic: two concurrent calls for the
// same rule must never observe the same value.
type CursorStore interface {
	Next(ctx context.Context, ruleID uuid.UUID) (uint64, error)
}

// MemoryCursorStore keeps cursors in process memory. Suitable for a single
// instance and for tests; rotation state is lost on restart, which only
// shifts the rotation phase, never its fairness.
type MemoryCursorStore struct {
	cursors sync.Map
}

// NewMemoryCursorStore creates an in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{}
}

// Next atomically increments and returns the cursor for a rule.
func (s *MemoryCursorStore) Next(_ context.Context, ruleID uuid.UUID) (uint64, error) {
	counter, _ := s.cursors.LoadOrStore(ruleID, new(atomic.Uint64))
	return counter.(*atomic.Uint64).Add(1), nil
}

// RedisCursorStore keeps cursors in Redis so rotation state is shared
// across horizontally scaled process instances. INCR is atomic on the
// server, which gives the same no-double-pick guarantee as the in-memory
// atomic counter.
type RedisCursorStore struct {
	client redis.UniversalClient
}

// NewRedisCursorStore creates a Redis-backed cursor store.
func NewRedisCursorStore(client redis.UniversalClient) *RedisCursorStore {
	return &RedisCursorStore{client: client}
}

// Next atomically increments and returns the cursor for a rule.
func (s *RedisCursorStore) Next(ctx context.Context, ruleID uuid.UUID) (uint64, error) {
	value, err := s.client.Incr(ctx, cursorKey(ruleID)).Result()
	if err != nil {
		return 0, fmt.Errorf("advance round-robin cursor: %w", err)
	}
	return uint64(value), nil
}

func cursorKey(ruleID uuid.UUID) string {
	return "routing:rr-cursor:" + ruleID.String()
}
