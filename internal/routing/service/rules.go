package service

import (
	"context"
	"errors"
	"fmt"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/transport"

	"github.com/google/uuid"
)

// CreateRule validates and persists a new assignment rule.
func (s *Service) CreateRule(ctx context.Context, tenantID uuid.UUID, req transport.CreateRuleRequest) (transport.RuleResponse, error) {
	conditions := req.Conditions.ToDomain()
	strategy := domain.Strategy(req.Strategy)
	if err := validateRule(conditions, strategy, req.CandidateUserIDs, req.CandidateTeamIDs); err != nil {
		return transport.RuleResponse{}, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rule, err := s.rules.CreateRule(ctx, repository.CreateRuleParams{
		TenantID:         tenantID,
		Name:             req.Name,
		PriorityOrder:    req.PriorityOrder,
		IsActive:         isActive,
		Conditions:       conditions,
		Strategy:         strategy,
		CandidateUserIDs: req.CandidateUserIDs,
		CandidateTeamIDs: req.CandidateTeamIDs,
	})
	if err != nil {
		return transport.RuleResponse{}, err
	}
	return transport.RuleFromDomain(rule), nil
}

// UpdateRule applies a partial update to an existing rule.
func (s *Service) UpdateRule(ctx context.Context, id, tenantID uuid.UUID, req transport.UpdateRuleRequest) (transport.RuleResponse, error) {
	existing, err := s.rules.GetRule(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.RuleResponse{}, ErrRuleNotFound
		}
		return transport.RuleResponse{}, err
	}

	params := repository.UpdateRuleParams{
		Name:             existing.Name,
		PriorityOrder:    existing.PriorityOrder,
		IsActive:         existing.IsActive,
		Conditions:       existing.Conditions,
		Strategy:         existing.Strategy,
		CandidateUserIDs: existing.CandidateUserIDs,
		CandidateTeamIDs: existing.CandidateTeamIDs,
	}
	if req.Name != nil {
		params.Name = *req.Name
	}
	if req.PriorityOrder != nil {
		params.PriorityOrder = *req.PriorityOrder
	}
	if req.IsActive != nil {
		params.IsActive = *req.IsActive
	}
	if req.Conditions != nil {
		params.Conditions = req.Conditions.ToDomain()
	}
	if req.Strategy != nil {
		params.Strategy = domain.Strategy(*req.Strategy)
	}
	if req.CandidateUserIDs != nil {
		params.CandidateUserIDs = req.CandidateUserIDs
	}
	if req.CandidateTeamIDs != nil {
		params.CandidateTeamIDs = req.CandidateTeamIDs
	}

	if err := validateRule(params.Conditions, params.Strategy, params.CandidateUserIDs, params.CandidateTeamIDs); err != nil {
		return transport.RuleResponse{}, err
	}

	rule, err := s.rules.UpdateRule(ctx, id, tenantID, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.RuleResponse{}, ErrRuleNotFound
		}
		return transport.RuleResponse{}, err
	}
	return transport.RuleFromDomain(rule), nil
}

func (s *Service) GetRule(ctx context.Context, id, tenantID uuid.UUID) (transport.RuleResponse, error) {
	rule, err := s.rules.GetRule(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.RuleResponse{}, ErrRuleNotFound
		}
		return transport.RuleResponse{}, err
	}
	return transport.RuleFromDomain(rule), nil
}

// ListRules returns all of a tenant's rules in evaluation order.
func (s *Service) ListRules(ctx context.Context, tenantID uuid.UUID) ([]transport.RuleResponse, error) {
	rules, err := s.rules.ListRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	domain.SortRules(rules)
	out := make([]transport.RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, transport.RuleFromDomain(r))
	}
	return out, nil
}

func (s *Service) DeleteRule(ctx context.Context, id, tenantID uuid.UUID) error {
	if err := s.rules.DeleteRule(ctx, id, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRuleNotFound
		}
		return err
	}
	return nil
}

func validateRule(conditions domain.RuleConditions, strat domain.Strategy, users, teams []uuid.UUID) error {
	if !strat.IsValid() {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidRule, strat)
	}
	if err := conditions.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(users) == 0 && len(teams) == 0 {
		return fmt.Errorf("%w: at least one candidate user or team is required", ErrInvalidRule)
	}
	return nil
}
