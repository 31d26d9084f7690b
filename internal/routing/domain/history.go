package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentMethod records how an assignment was decided.
type AssignmentMethod string

const (
	MethodRuleBased AssignmentMethod = "RuleBased"
	MethodManual    AssignmentMethod = "Manual"
	MethodDefault   AssignmentMethod = "Default"
)

// AssignmentHistory is an immutable audit record of one lead assignment.
// Append-only; never updated or deleted. It is also the source of truth for
// who owned a lead before the current owner.
type AssignmentHistory struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	LeadID     uuid.UUID
	RuleID     *uuid.UUID
	FromUserID *uuid.UUID
	ToUserID   uuid.UUID
	Method     AssignmentMethod
	Reason     string
	ActorID    uuid.UUID
	CreatedAt  time.Time
}
