package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const queueColumns = `id, tenant_id, lead_id, status, priority_score, attempt_count,
	max_attempts, last_attempt_at, next_attempt_at, failure_reason, assigned_user_id,
	rule_id, created_at, updated_at`

// EnqueueParams describes a lead to place on the routing queue.
type EnqueueParams struct {
	TenantID      uuid.UUID
	LeadID        uuid.UUID
	PriorityScore int
	MaxAttempts   int
	FailureReason string
}

// Enqueue creates a Pending queue entry for a lead that could not be
// assigned immediately. If the lead already has a non-terminal entry the
// existing entry is returned instead of creating a duplicate.
func (r *Repository) Enqueue(ctx context.Context, params EnqueueParams) (domain.RoutingQueueEntry, error) {
	existing, err := r.activeEntryForLead(ctx, params.TenantID, params.LeadID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.RoutingQueueEntry{}, err
	}

	maxAttempts := params.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO routing_queue (
			tenant_id, lead_id, status, priority_score, max_attempts, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+queueColumns+`
	`, params.TenantID, params.LeadID, string(domain.QueuePending),
		params.PriorityScore, maxAttempts, params.FailureReason)

	return scanQueueEntry(row)
}

// ClaimPending atomically moves up to limit due Pending entries to
// Processing and returns them. SKIP LOCKED makes the claim compare-and-swap
// like: concurrent workers never claim the same entry.
func (r *Repository) ClaimPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.RoutingQueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE routing_queue
		SET status = $3, updated_at = now()
		WHERE id IN (
			SELECT id FROM routing_queue
			WHERE tenant_id = $1
				AND status = $2
				AND (next_attempt_at IS NULL OR next_attempt_at <= now())
			ORDER BY priority_score DESC, created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+queueColumns+`
	`, tenantID, string(domain.QueuePending), string(domain.QueueProcessing), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.RoutingQueueEntry, 0, limit)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// MarkAssigned completes a Processing entry, recording the resolved user
// and rule. Terminal; the row is never touched again.
func (r *Repository) MarkAssigned(ctx context.Context, id, tenantID uuid.UUID, userID uuid.UUID, ruleID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE routing_queue
		SET status = $3, assigned_user_id = $4, rule_id = $5,
			failure_reason = '', last_attempt_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $6
	`, id, tenantID, string(domain.QueueAssigned), userID, ruleID, string(domain.QueueProcessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRetry returns a Processing entry to Pending with an incremented
// attempt count, the failure reason, and the earliest time the next claim
// may pick it up.
func (r *Repository) MarkRetry(ctx context.Context, id, tenantID uuid.UUID, reason string, nextAttemptAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE routing_queue
		SET status = $3, attempt_count = attempt_count + 1, failure_reason = $4,
			last_attempt_at = now(), next_attempt_at = $5, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $6
	`, id, tenantID, string(domain.QueuePending), reason, nextAttemptAt, string(domain.QueueProcessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed terminates a Processing entry after its attempts are
// exhausted. Failed entries surface for manual assignment and are never
// re-claimed.
func (r *Repository) MarkFailed(ctx context.Context, id, tenantID uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE routing_queue
		SET status = $3, attempt_count = attempt_count + 1, failure_reason = $4,
			last_attempt_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $5
	`, id, tenantID, string(domain.QueueFailed), reason, string(domain.QueueProcessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTenantsWithDuePending returns the tenants that currently have Pending
// entries ready to claim. Used by the periodic drain dispatcher.
func (r *Repository) ListTenantsWithDuePending(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT tenant_id FROM routing_queue
		WHERE status = $1 AND (next_attempt_at IS NULL OR next_attempt_at <= now())
		LIMIT $2
	`, string(domain.QueuePending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tenants, nil
}

// ListQueueEntries returns a tenant's queue entries, optionally filtered by
// status, newest first.
func (r *Repository) ListQueueEntries(ctx context.Context, tenantID uuid.UUID, status *domain.QueueStatus, limit int) ([]domain.RoutingQueueEntry, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT ` + queueColumns + `
		FROM routing_queue
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.RoutingQueueEntry, 0)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

func (r *Repository) activeEntryForLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.RoutingQueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM routing_queue
		WHERE tenant_id = $1 AND lead_id = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, leadID, string(domain.QueuePending), string(domain.QueueProcessing))

	entry, err := scanQueueEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoutingQueueEntry{}, ErrNotFound
	}
	return entry, err
}

func scanQueueEntry(row ruleScanner) (domain.RoutingQueueEntry, error) {
	var (
		entry  domain.RoutingQueueEntry
		status string
	)
	err := row.Scan(&entry.ID, &entry.TenantID, &entry.LeadID, &status,
		&entry.PriorityScore, &entry.AttemptCount, &entry.MaxAttempts,
		&entry.LastAttemptAt, &entry.NextAttemptAt, &entry.FailureReason,
		&entry.AssignedUserID, &entry.RuleID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return domain.RoutingQueueEntry{}, err
	}
	entry.Status = domain.QueueStatus(status)
	return entry, nil
}
