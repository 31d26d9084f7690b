package repository

import (
	"context"
	"errors"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetLead fetches the routing snapshot of a lead. The lead record is owned
// by the external lead store; the routing core reads the snapshot and only
// ever writes owner_user_id and score back.
func (r *Repository) GetLead(ctx context.Context, leadID, tenantID uuid.UUID) (domain.Lead, error) {
	var (
		lead   domain.Lead
		source string
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, email, phone, company, job_title, source, status, score,
			employee_count, annual_revenue, industry, notes, owner_user_id, created_at
		FROM leads
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID).Scan(
		&lead.ID, &lead.TenantID, &lead.Email, &lead.Phone, &lead.Company,
		&lead.JobTitle, &source, &status, &lead.Score, &lead.EmployeeCount,
		&lead.AnnualRevenue, &lead.Industry, &lead.Notes, &lead.OwnerUserID,
		&lead.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Source = domain.LeadSource(source)
	lead.Status = domain.LeadStatus(status)
	return lead, nil
}

// UpdateLeadOwner writes the routing decision back onto the lead record.
// This is the core's primary side effect.
func (r *Repository) UpdateLeadOwner(ctx context.Context, leadID, tenantID uuid.UUID, ownerUserID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET owner_user_id = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID, ownerUserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLeadScore persists a refreshed score total onto the lead record so
// score-range rule conditions observe it on the next evaluation.
func (r *Repository) UpdateLeadScore(ctx context.Context, leadID, tenantID uuid.UUID, score int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET score = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
