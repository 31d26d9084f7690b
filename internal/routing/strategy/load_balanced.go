package strategy

import (
	"context"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

// LoadBalanced picks the candidate with the fewest active leads. Ties are
// broken by candidate list order, not randomly, so behavior stays
// deterministic for tests and reproducible in production.
type LoadBalanced struct{}

var _ Selector = (*LoadBalanced)(nil)

// NewLoadBalanced creates a load-balanced selector.
func NewLoadBalanced() *LoadBalanced {
	return &LoadBalanced{}
}

// Name returns the strategy tag.
func (lb *LoadBalanced) Name() domain.Strategy {
	return domain.StrategyLoadBalanced
}

// Select returns the candidate whose pre-increment active lead count is
// minimal among the filtered set.
func (lb *LoadBalanced) Select(_ context.Context, _ *domain.AssignmentRule, candidates []Candidate) (uuid.UUID, error) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ActiveLeads < best.ActiveLeads {
			best = c
		}
	}
	return best.UserID, nil
}
