package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Strategy selects which distribution algorithm a rule uses.
type Strategy string

const (
	StrategyRoundRobin     Strategy = "RoundRobin"
	StrategyLoadBalanced   Strategy = "LoadBalanced"
	StrategyRandom         Strategy = "Random"
	StrategySkillBased     Strategy = "SkillBased"
	StrategyTerritoryBased Strategy = "TerritoryBased"
)

// knownStrategies is the closed set of strategy tags a rule may carry.
var knownStrategies = map[Strategy]bool{
	StrategyRoundRobin:     true,
	StrategyLoadBalanced:   true,
	StrategyRandom:         true,
	StrategySkillBased:     true,
	StrategyTerritoryBased: true,
}

// IsValid reports whether s is a known strategy tag.
func (s Strategy) IsValid() bool {
	return knownStrategies[s]
}

// RuleConditions is the structured predicate of an assignment rule.
// Semantics: AND across condition keys, OR (allow-list) within a key.
// A zero-value condition set matches every lead.
type RuleConditions struct {
	Sources        []LeadSource `json:"sources,omitempty"`
	ScoreMin       *int         `json:"scoreMin,omitempty"`
	ScoreMax       *int         `json:"scoreMax,omitempty"`
	Statuses       []LeadStatus `json:"statuses,omitempty"`
	CompanySizeMin *int         `json:"companySizeMin,omitempty"`
	CompanySizeMax *int         `json:"companySizeMax,omitempty"`
}

// IsEmpty reports whether no condition is present, in which case the rule
// matches unconditionally.
func (c RuleConditions) IsEmpty() bool {
	return len(c.Sources) == 0 &&
		c.ScoreMin == nil && c.ScoreMax == nil &&
		len(c.Statuses) == 0 &&
		c.CompanySizeMin == nil && c.CompanySizeMax == nil
}

// Validate checks the condition set for contradictions. Malformed conditions
// make the rule unmatchable, never an evaluation failure.
func (c RuleConditions) Validate() error {
	if c.ScoreMin != nil && (*c.ScoreMin < 0 || *c.ScoreMin > 100) {
		return fmt.Errorf("scoreMin %d out of range [0,100]", *c.ScoreMin)
	}
	if c.ScoreMax != nil && (*c.ScoreMax < 0 || *c.ScoreMax > 100) {
		return fmt.Errorf("scoreMax %d out of range [0,100]", *c.ScoreMax)
	}
	if c.ScoreMin != nil && c.ScoreMax != nil && *c.ScoreMin > *c.ScoreMax {
		return fmt.Errorf("scoreMin %d greater than scoreMax %d", *c.ScoreMin, *c.ScoreMax)
	}
	if c.CompanySizeMin != nil && *c.CompanySizeMin < 0 {
		return fmt.Errorf("companySizeMin %d is negative", *c.CompanySizeMin)
	}
	if c.CompanySizeMin != nil && c.CompanySizeMax != nil && *c.CompanySizeMin > *c.CompanySizeMax {
		return fmt.Errorf("companySizeMin %d greater than companySizeMax %d", *c.CompanySizeMin, *c.CompanySizeMax)
	}
	return nil
}

// Matches reports whether the lead satisfies every present condition.
func (c RuleConditions) Matches(lead Lead) bool {
	if len(c.Sources) > 0 && !containsSource(c.Sources, lead.Source) {
		return false
	}
	if c.ScoreMin != nil && lead.Score < *c.ScoreMin {
		return false
	}
	if c.ScoreMax != nil && lead.Score > *c.ScoreMax {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, lead.Status) {
		return false
	}
	if c.CompanySizeMin != nil && lead.EmployeeCount < *c.CompanySizeMin {
		return false
	}
	if c.CompanySizeMax != nil && lead.EmployeeCount > *c.CompanySizeMax {
		return false
	}
	return true
}

// AssignmentRule is a tenant-configured, priority-ordered condition +
// strategy + candidate-list tuple. Consumed read-only by the rule engine.
type AssignmentRule struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Name             string
	PriorityOrder    int
	IsActive         bool
	Conditions       RuleConditions
	Strategy         Strategy
	CandidateUserIDs []uuid.UUID
	CandidateTeamIDs []uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SortRules orders rules ascending by priority order, ties broken by rule id,
// so evaluation order is deterministic regardless of creation order.
func SortRules(rules []AssignmentRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].PriorityOrder != rules[j].PriorityOrder {
			return rules[i].PriorityOrder < rules[j].PriorityOrder
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
}

func containsSource(list []LeadSource, target LeadSource) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func containsStatus(list []LeadStatus, target LeadStatus) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
