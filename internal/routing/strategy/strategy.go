// Package strategy implements the distribution strategies used to pick one
// user from a matched rule's candidate list, and the dispatcher that routes
// a rule to its strategy.
package strategy

import (
	"context"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

// Candidate is a user offered for selection together with its current load.
// The load is read fresh from the workload tracker for every dispatch.
type Candidate struct {
	UserID      uuid.UUID
	ActiveLeads int
}

// Selector picks one user from an availability-filtered candidate list.
// Implementations must tolerate concurrent calls for the same rule.
type Selector interface {
	Name() domain.Strategy
	Select(ctx context.Context, rule *domain.AssignmentRule, candidates []Candidate) (uuid.UUID, error)
}

// WorkloadGate filters a candidate list down to users that are available
// and under capacity, preserving candidate list order. Implemented by the
// workload tracker.
type WorkloadGate interface {
	FilterAvailable(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) ([]Candidate, error)
}

// strategyFallbacks maps strategy tags that are not separately implemented
// to the strategy they degrade to. SkillBased and TerritoryBased are stubs.
var strategyFallbacks = map[domain.Strategy]domain.Strategy{
	domain.StrategySkillBased:     domain.StrategyLoadBalanced,
	domain.StrategyTerritoryBased: domain.StrategyRoundRobin,
}

// Dispatcher selects a user for a matched rule. Strategies form a closed
// set behind the Selector interface, found by lookup rather than a switch,
// so adding a strategy does not touch the dispatch path.
type Dispatcher struct {
	selectors map[domain.Strategy]Selector
	gate      WorkloadGate
	log       *logger.Logger
}

// NewDispatcher creates a dispatcher with the standard strategy set.
// The cursor store carries round-robin rotation state across calls (and
// across process instances when Redis-backed).
func NewDispatcher(cursors CursorStore, gate WorkloadGate, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		selectors: make(map[domain.Strategy]Selector),
		gate:      gate,
		log:       log,
	}
	d.Register(NewRoundRobin(cursors))
	d.Register(NewLoadBalanced())
	d.Register(NewRandom())
	return d
}

// Register adds a selector for its strategy tag.
func (d *Dispatcher) Register(s Selector) {
	d.selectors[s.Name()] = s
}

// Select picks one available user from the rule's candidate list, or
// returns false when filtering empties the set. Candidate exhaustion is a
// normal negative result, not an error; errors are reserved for gate or
// cursor failures.
func (d *Dispatcher) Select(ctx context.Context, rule *domain.AssignmentRule, candidateIDs []uuid.UUID) (uuid.UUID, bool, error) {
	candidates, err := d.gate.FilterAvailable(ctx, rule.TenantID, candidateIDs)
	if err != nil {
		return uuid.Nil, false, err
	}
	if len(candidates) == 0 {
		return uuid.Nil, false, nil
	}

	effective := rule.Strategy
	if fallback, ok := strategyFallbacks[effective]; ok {
		if d.log != nil {
			d.log.StrategyFallback(string(rule.Strategy), string(fallback), rule.ID.String())
		}
		effective = fallback
	}

	selector, ok := d.selectors[effective]
	if !ok {
		// Unknown strategy tags behave like LoadBalanced rather than
		// dropping the lead.
		if d.log != nil {
			d.log.StrategyFallback(string(rule.Strategy), string(domain.StrategyLoadBalanced), rule.ID.String())
		}
		selector = d.selectors[domain.StrategyLoadBalanced]
	}

	userID, err := selector.Select(ctx, rule, candidates)
	if err != nil {
		return uuid.Nil, false, err
	}
	return userID, true, nil
}
