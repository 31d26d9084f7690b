package strategy

import (
	"context"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

// RoundRobin rotates through a rule's candidates in order. The rotation
// cursor is scheduler state keyed by rule id, not lead state: it survives
// across calls and, with a Redis-backed store, across process instances.
type RoundRobin struct {
	cursors CursorStore
}

var _ Selector = (*RoundRobin)(nil)

// NewRoundRobin creates a round-robin selector.
func NewRoundRobin(cursors CursorStore) *RoundRobin {
	return &RoundRobin{cursors: cursors}
}

// Name returns the strategy tag.
func (rr *RoundRobin) Name() domain.Strategy {
	return domain.StrategyRoundRobin
}

// Select advances the rule's cursor and picks cursor mod candidate count.
// Within one full cycle over N stable candidates no candidate is picked
// twice before all others have been picked once.
func (rr *RoundRobin) Select(ctx context.Context, rule *domain.AssignmentRule, candidates []Candidate) (uuid.UUID, error) {
	cursor, err := rr.cursors.Next(ctx, rule.ID)
	if err != nil {
		return uuid.Nil, err
	}
	idx := int((cursor - 1) % uint64(len(candidates)))
	return candidates[idx].UserID, nil
}
