package strategy

import (
	"context"
	"math/rand/v2"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

// Random picks uniformly over the filtered candidate list.
type Random struct{}

var _ Selector = (*Random)(nil)

// NewRandom creates a random selector.
func NewRandom() *Random {
	return &Random{}
}

// Name returns the strategy tag.
func (r *Random) Name() domain.Strategy {
	return domain.StrategyRandom
}

// Select returns a uniformly chosen candidate.
func (r *Random) Select(_ context.Context, _ *domain.AssignmentRule, candidates []Candidate) (uuid.UUID, error) {
	return candidates[rand.IntN(len(candidates))].UserID, nil
}
