package repository

import (
	"context"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

const workloadColumns = `tenant_id, user_id, active_leads_count, total_leads_assigned,
	max_lead_capacity, is_available, conversion_rate, last_activity_at, created_at, updated_at`

// Ensure returns the workload record for a user, creating it with the given
// default capacity if absent. The insert is idempotent under concurrency;
// losers of the insert race read the winner's row.
func (r *Repository) Ensure(ctx context.Context, tenantID, userID uuid.UUID, defaultCapacity int) (domain.UserWorkload, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_workloads (tenant_id, user_id, max_lead_capacity, is_available)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`, tenantID, userID, defaultCapacity)
	if err != nil {
		return domain.UserWorkload{}, err
	}

	var w domain.UserWorkload
	err = r.pool.QueryRow(ctx, `
		SELECT `+workloadColumns+`
		FROM user_workloads
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID).Scan(
		&w.TenantID, &w.UserID, &w.ActiveLeadsCount, &w.TotalLeadsAssigned,
		&w.MaxLeadCapacity, &w.IsAvailable, &w.ConversionRate, &w.LastActivityAt,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return domain.UserWorkload{}, err
	}
	return w, nil
}

// Increment raises the user's active and total counts in a single statement
// so concurrent assignments never lose an update.
func (r *Repository) Increment(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_workloads
		SET active_leads_count = active_leads_count + 1,
			total_leads_assigned = total_leads_assigned + 1,
			last_activity_at = now(),
			updated_at = now()
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID)
	return err
}

// Decrement lowers the user's active count, floored at zero in SQL so a
// stray decrement can never drive the count negative.
func (r *Repository) Decrement(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_workloads
		SET active_leads_count = GREATEST(active_leads_count - 1, 0),
			last_activity_at = now(),
			updated_at = now()
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID)
	return err
}

// SetAvailability toggles whether the user may receive new leads.
func (r *Repository) SetAvailability(ctx context.Context, tenantID, userID uuid.UUID, available bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_workloads
		SET is_available = $3, updated_at = now()
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCapacity adjusts the user's maximum lead capacity. Lowering capacity
// below the current active count is allowed; the availability gate simply
// stops offering the user until load drains.
func (r *Repository) SetCapacity(ctx context.Context, tenantID, userID uuid.UUID, capacity int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_workloads
		SET max_lead_capacity = $3, updated_at = now()
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID, capacity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWorkloads returns all workload records for a tenant.
func (r *Repository) ListWorkloads(ctx context.Context, tenantID uuid.UUID) ([]domain.UserWorkload, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workloadColumns+`
		FROM user_workloads
		WHERE tenant_id = $1
		ORDER BY user_id ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workloads := make([]domain.UserWorkload, 0)
	for rows.Next() {
		var w domain.UserWorkload
		if err := rows.Scan(
			&w.TenantID, &w.UserID, &w.ActiveLeadsCount, &w.TotalLeadsAssigned,
			&w.MaxLeadCapacity, &w.IsAvailable, &w.ConversionRate, &w.LastActivityAt,
			&w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		workloads = append(workloads, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return workloads, nil
}
