package repository

import (
	"context"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

// RecordParams describes one assignment for the audit log.
type RecordParams struct {
	TenantID   uuid.UUID
	LeadID     uuid.UUID
	RuleID     *uuid.UUID
	FromUserID *uuid.UUID
	ToUserID   uuid.UUID
	Method     domain.AssignmentMethod
	Reason     string
	ActorID    uuid.UUID
}

// RecordAssignment appends one history row. The table is append-only:
// there are deliberately no update or delete operations for it.
func (r *Repository) RecordAssignment(ctx context.Context, params RecordParams) (domain.AssignmentHistory, error) {
	var h domain.AssignmentHistory
	var method string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assignment_history (
			tenant_id, lead_id, rule_id, from_user_id, to_user_id, method, reason, actor_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, tenant_id, lead_id, rule_id, from_user_id, to_user_id, method, reason, actor_id, created_at
	`, params.TenantID, params.LeadID, params.RuleID, params.FromUserID,
		params.ToUserID, string(params.Method), params.Reason, params.ActorID,
	).Scan(&h.ID, &h.TenantID, &h.LeadID, &h.RuleID, &h.FromUserID, &h.ToUserID,
		&method, &h.Reason, &h.ActorID, &h.CreatedAt)
	if err != nil {
		return domain.AssignmentHistory{}, err
	}
	h.Method = domain.AssignmentMethod(method)
	return h, nil
}

// ListHistoryByLead returns a lead's assignment history, oldest first, so
// the audit trail reads in the order assignments occurred.
func (r *Repository) ListHistoryByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.AssignmentHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, rule_id, from_user_id, to_user_id, method, reason, actor_id, created_at
		FROM assignment_history
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC, id ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.AssignmentHistory, 0)
	for rows.Next() {
		var h domain.AssignmentHistory
		var method string
		if err := rows.Scan(&h.ID, &h.TenantID, &h.LeadID, &h.RuleID, &h.FromUserID,
			&h.ToUserID, &method, &h.Reason, &h.ActorID, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Method = domain.AssignmentMethod(method)
		records = append(records, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}
