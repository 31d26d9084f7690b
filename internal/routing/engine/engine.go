// Package engine evaluates a lead against a tenant's ordered assignment rules.
package engine

import (
	"log/slog"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/platform/logger"
)

// Engine matches leads to assignment rules. It holds no per-tenant state;
// rules are passed in per evaluation so workload and rule changes between
// cycles are always observed.
type Engine struct {
	log *logger.Logger
}

// New creates a rule engine.
func New(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Evaluate returns the first active rule the lead matches, or nil when no
// rule matches. Rules are evaluated ascending by priority order with ties
// broken by rule id. A rule with an empty condition set matches
// unconditionally.
//
// Evaluation never fails: a rule with malformed conditions is logged and
// skipped, falling through to the next rule in priority order. Evaluation
// stops at the first match even if that rule later fails to produce an
// assignment; candidate exhaustion is the dispatcher's concern, not a
// reason to fall through here.
func (e *Engine) Evaluate(lead domain.Lead, rules []domain.AssignmentRule) *domain.AssignmentRule {
	ordered := make([]domain.AssignmentRule, len(rules))
	copy(ordered, rules)
	domain.SortRules(ordered)

	for i := range ordered {
		rule := &ordered[i]
		if !rule.IsActive {
			continue
		}

		if err := rule.Conditions.Validate(); err != nil {
			if e.log != nil {
				e.log.Warn("skipping rule with malformed conditions",
					slog.String("rule_id", rule.ID.String()),
					slog.String("tenant_id", rule.TenantID.String()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if rule.Conditions.IsEmpty() || rule.Conditions.Matches(lead) {
			return rule
		}
	}

	return nil
}
