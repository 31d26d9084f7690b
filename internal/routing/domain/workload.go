package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLeadCapacity is assigned when a workload record is lazily created
// for a user the tracker has not seen before.
const DefaultLeadCapacity = 50

// UserWorkload tracks per-user assignment load and availability.
// Mutated exclusively by the workload tracker.
type UserWorkload struct {
	TenantID           uuid.UUID
	UserID             uuid.UUID
	ActiveLeadsCount   int
	TotalLeadsAssigned int
	MaxLeadCapacity    int
	IsAvailable        bool
	ConversionRate     float64
	LastActivityAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CanTakeLead reports whether the user may be offered as a candidate.
// A user at or above capacity, or flagged unavailable, is never selected.
// ActiveLeadsCount may transiently exceed MaxLeadCapacity if capacity was
// lowered after assignment; the gate is never enforced retroactively.
func (w UserWorkload) CanTakeLead() bool {
	return w.IsAvailable && w.ActiveLeadsCount < w.MaxLeadCapacity
}
