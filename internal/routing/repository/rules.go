package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRuleParams holds the admin-provided fields for a new rule.
type CreateRuleParams struct {
	TenantID         uuid.UUID
	Name             string
	PriorityOrder    int
	IsActive         bool
	Conditions       domain.RuleConditions
	Strategy         domain.Strategy
	CandidateUserIDs []uuid.UUID
	CandidateTeamIDs []uuid.UUID
}

// CreateRule inserts a new assignment rule.
func (r *Repository) CreateRule(ctx context.Context, params CreateRuleParams) (domain.AssignmentRule, error) {
	conditions, err := json.Marshal(params.Conditions)
	if err != nil {
		return domain.AssignmentRule{}, err
	}
	users, err := json.Marshal(idsOrEmpty(params.CandidateUserIDs))
	if err != nil {
		return domain.AssignmentRule{}, err
	}
	teams, err := json.Marshal(idsOrEmpty(params.CandidateTeamIDs))
	if err != nil {
		return domain.AssignmentRule{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO assignment_rules (
			tenant_id, name, priority_order, is_active, conditions, strategy,
			candidate_user_ids, candidate_team_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, tenant_id, name, priority_order, is_active, conditions, strategy,
			candidate_user_ids, candidate_team_ids, created_at, updated_at
	`, params.TenantID, params.Name, params.PriorityOrder, params.IsActive,
		conditions, string(params.Strategy), users, teams)

	return scanRule(row)
}

// UpdateRuleParams holds the mutable fields of a rule.
type UpdateRuleParams struct {
	Name             string
	PriorityOrder    int
	IsActive         bool
	Conditions       domain.RuleConditions
	Strategy         domain.Strategy
	CandidateUserIDs []uuid.UUID
	CandidateTeamIDs []uuid.UUID
}

// UpdateRule replaces a rule's mutable fields.
func (r *Repository) UpdateRule(ctx context.Context, id, tenantID uuid.UUID, params UpdateRuleParams) (domain.AssignmentRule, error) {
	conditions, err := json.Marshal(params.Conditions)
	if err != nil {
		return domain.AssignmentRule{}, err
	}
	users, err := json.Marshal(idsOrEmpty(params.CandidateUserIDs))
	if err != nil {
		return domain.AssignmentRule{}, err
	}
	teams, err := json.Marshal(idsOrEmpty(params.CandidateTeamIDs))
	if err != nil {
		return domain.AssignmentRule{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE assignment_rules
		SET name = $3, priority_order = $4, is_active = $5, conditions = $6,
			strategy = $7, candidate_user_ids = $8, candidate_team_ids = $9,
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING id, tenant_id, name, priority_order, is_active, conditions, strategy,
			candidate_user_ids, candidate_team_ids, created_at, updated_at
	`, id, tenantID, params.Name, params.PriorityOrder, params.IsActive,
		conditions, string(params.Strategy), users, teams)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssignmentRule{}, ErrNotFound
	}
	return rule, err
}

// GetRule fetches one rule.
func (r *Repository) GetRule(ctx context.Context, id, tenantID uuid.UUID) (domain.AssignmentRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, priority_order, is_active, conditions, strategy,
			candidate_user_ids, candidate_team_ids, created_at, updated_at
		FROM assignment_rules
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssignmentRule{}, ErrNotFound
	}
	return rule, err
}

// ListRules returns all of a tenant's rules ordered for evaluation.
func (r *Repository) ListRules(ctx context.Context, tenantID uuid.UUID) ([]domain.AssignmentRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, priority_order, is_active, conditions, strategy,
			candidate_user_ids, candidate_team_ids, created_at, updated_at
		FROM assignment_rules
		WHERE tenant_id = $1
		ORDER BY priority_order ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListActiveRules returns the tenant's active rules ordered for evaluation.
func (r *Repository) ListActiveRules(ctx context.Context, tenantID uuid.UUID) ([]domain.AssignmentRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, priority_order, is_active, conditions, strategy,
			candidate_user_ids, candidate_team_ids, created_at, updated_at
		FROM assignment_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY priority_order ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

// DeleteRule removes a rule.
func (r *Repository) DeleteRule(ctx context.Context, id, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM assignment_rules WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (domain.AssignmentRule, error) {
	var (
		rule       domain.AssignmentRule
		strategy   string
		conditions []byte
		users      []byte
		teams      []byte
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&rule.ID, &rule.TenantID, &rule.Name, &rule.PriorityOrder,
		&rule.IsActive, &conditions, &strategy, &users, &teams, &createdAt, &updatedAt)
	if err != nil {
		return domain.AssignmentRule{}, err
	}

	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return domain.AssignmentRule{}, err
	}
	if err := json.Unmarshal(users, &rule.CandidateUserIDs); err != nil {
		return domain.AssignmentRule{}, err
	}
	if err := json.Unmarshal(teams, &rule.CandidateTeamIDs); err != nil {
		return domain.AssignmentRule{}, err
	}

	rule.Strategy = domain.Strategy(strategy)
	rule.CreatedAt = createdAt
	rule.UpdatedAt = updatedAt
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]domain.AssignmentRule, error) {
	rules := make([]domain.AssignmentRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

func idsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
