// Package workload tracks per-user assignment load and availability.
// The tracker is the single source of truth for "is this user at capacity"
// and must be consulted by the dispatcher before every selection.
package workload

import (
	"context"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/internal/routing/strategy"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

// Store persists workload records. Increment and Decrement must be atomic
// single-row updates: two leads may be assigned to the same candidate in
// the same instant, and a lost increment would let a user silently exceed
// capacity.
type Store interface {
	// Ensure returns the workload record for a user, creating it with the
	// given default capacity (available, zero counts) if absent.
	Ensure(ctx context.Context, tenantID, userID uuid.UUID, defaultCapacity int) (domain.UserWorkload, error)
	// Increment raises active and total counts by one and stamps activity.
	Increment(ctx context.Context, tenantID, userID uuid.UUID) error
	// Decrement lowers the active count by one, floored at zero.
	Decrement(ctx context.Context, tenantID, userID uuid.UUID) error
}

// Tracker maintains per-tenant, per-user workload counters.
type Tracker struct {
	store           Store
	defaultCapacity int
	log             *logger.Logger
}

var _ strategy.WorkloadGate = (*Tracker)(nil)

// NewTracker creates a workload tracker. A non-positive default capacity
// falls back to domain.DefaultLeadCapacity.
func NewTracker(store Store, defaultCapacity int, log *logger.Logger) *Tracker {
	if defaultCapacity <= 0 {
		defaultCapacity = domain.DefaultLeadCapacity
	}
	return &Tracker{store: store, defaultCapacity: defaultCapacity, log: log}
}

// Increment records one more active lead for the user, lazily creating the
// workload record the first time the user is referenced.
func (t *Tracker) Increment(ctx context.Context, tenantID, userID uuid.UUID) error {
	if _, err := t.store.Ensure(ctx, tenantID, userID, t.defaultCapacity); err != nil {
		return err
	}
	return t.store.Increment(ctx, tenantID, userID)
}

// Decrement releases one active lead slot for the user. Decrementing below
// zero clamps to zero and is not an error; it is used on manual
// reassignment to release the previous owner's slot.
func (t *Tracker) Decrement(ctx context.Context, tenantID, userID uuid.UUID) error {
	if _, err := t.store.Ensure(ctx, tenantID, userID, t.defaultCapacity); err != nil {
		return err
	}
	return t.store.Decrement(ctx, tenantID, userID)
}

// IsAvailable reports whether the user can be offered as a candidate.
func (t *Tracker) IsAvailable(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	w, err := t.store.Ensure(ctx, tenantID, userID, t.defaultCapacity)
	if err != nil {
		return false, err
	}
	return w.CanTakeLead(), nil
}

// Get returns the workload record for a user, creating it if absent.
func (t *Tracker) Get(ctx context.Context, tenantID, userID uuid.UUID) (domain.UserWorkload, error) {
	return t.store.Ensure(ctx, tenantID, userID, t.defaultCapacity)
}

// FilterAvailable keeps only candidates that are available and under
// capacity, preserving the candidate list order so load-balanced ties stay
// deterministic. Counts are read fresh on every call, never cached.
func (t *Tracker) FilterAvailable(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) ([]strategy.Candidate, error) {
	candidates := make([]strategy.Candidate, 0, len(userIDs))
	for _, userID := range userIDs {
		w, err := t.store.Ensure(ctx, tenantID, userID, t.defaultCapacity)
		if err != nil {
			return nil, err
		}
		if !w.CanTakeLead() {
			continue
		}
		candidates = append(candidates, strategy.Candidate{
			UserID:      userID,
			ActiveLeads: w.ActiveLeadsCount,
		})
	}
	return candidates, nil
}
