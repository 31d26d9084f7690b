package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the state of a routing queue entry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "Pending"
	QueueProcessing QueueStatus = "Processing"
	QueueAssigned   QueueStatus = "Assigned"
	QueueFailed     QueueStatus = "Failed"
)

// DefaultMaxAttempts is how many routing attempts a queue entry gets before
// it is marked Failed and surfaced for manual assignment.
const DefaultMaxAttempts = 3

// queueTransitions defines the legal state machine:
// Pending -> Processing -> {Assigned | Pending (retry) | Failed}.
var queueTransitions = map[QueueStatus][]QueueStatus{
	QueuePending:    {QueueProcessing},
	QueueProcessing: {QueueAssigned, QueuePending, QueueFailed},
}

// CanTransition reports whether moving from one queue status to another is
// legal. Assigned and Failed are terminal and immutable.
func CanTransition(from, to QueueStatus) bool {
	for _, next := range queueTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalQueueStatus reports whether the status permits no further
// automatic processing.
func IsTerminalQueueStatus(status QueueStatus) bool {
	return status == QueueAssigned || status == QueueFailed
}

// RoutingQueueEntry holds a lead whose routing could not complete
// immediately, pending periodic retry.
type RoutingQueueEntry struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	LeadID         uuid.UUID
	Status         QueueStatus
	PriorityScore  int
	AttemptCount   int
	MaxAttempts    int
	LastAttemptAt  *time.Time
	NextAttemptAt  *time.Time
	FailureReason  string
	AssignedUserID *uuid.UUID
	RuleID         *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AttemptsExhausted reports whether the entry has used all its attempts.
func (e RoutingQueueEntry) AttemptsExhausted() bool {
	return e.AttemptCount >= e.MaxAttempts
}
