// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Routing Domain Events
// =============================================================================

// LeadAssigned is published when routing assigns a lead to a user.
type LeadAssigned struct {
	BaseEvent
	TenantID uuid.UUID               `json:"tenantId"`
	LeadID   uuid.UUID               `json:"leadId"`
	UserID   uuid.UUID               `json:"userId"`
	RuleID   *uuid.UUID              `json:"ruleId,omitempty"`
	Method   domain.AssignmentMethod `json:"method"`
}

func (e LeadAssigned) EventName() string { return "routing.lead.assigned" }

// LeadReassigned is published when an operator manually moves a lead to a
// different owner.
type LeadReassigned struct {
	BaseEvent
	TenantID   uuid.UUID  `json:"tenantId"`
	LeadID     uuid.UUID  `json:"leadId"`
	FromUserID *uuid.UUID `json:"fromUserId,omitempty"`
	ToUserID   uuid.UUID  `json:"toUserId"`
	ActorID    uuid.UUID  `json:"actorId"`
}

func (e LeadReassigned) EventName() string { return "routing.lead.reassigned" }

// LeadRoutingQueued is published when a lead could not be assigned
// immediately and was placed on the routing queue for retry.
type LeadRoutingQueued struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	Reason   string    `json:"reason"`
	Attempt  int       `json:"attempt"`
}

func (e LeadRoutingQueued) EventName() string { return "routing.lead.queued" }

// LeadRoutingFailed is published when a queue entry exhausts its attempts
// and must surface for manual assignment.
type LeadRoutingFailed struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
}

func (e LeadRoutingFailed) EventName() string { return "routing.lead.failed" }

// NewInMemoryBus is a convenience re-export from platform/events.
var NewInMemoryBus = events.NewInMemoryBus
