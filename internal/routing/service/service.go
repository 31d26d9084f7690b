// Package service implements the routing orchestration facade: scoring,
// rule evaluation, strategy dispatch, queueing, and manual reassignment.
package service

import (
	"context"
	"time"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/internal/routing/engine"
	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/strategy"
	"crm_routing_backend/internal/routing/workload"
	"crm_routing_backend/platform/apperr"
	platformevents "crm_routing_backend/platform/events"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrLeadNotFound  = apperr.NotFound("lead not found")
	ErrRuleNotFound  = apperr.NotFound("assignment rule not found")
	ErrQueueNotFound = apperr.NotFound("routing queue entry not found")
	ErrInvalidRule   = apperr.Validation("invalid assignment rule")
)

// RuleStore persists assignment rules.
type RuleStore interface {
	CreateRule(ctx context.Context, params repository.CreateRuleParams) (domain.AssignmentRule, error)
	UpdateRule(ctx context.Context, id, tenantID uuid.UUID, params repository.UpdateRuleParams) (domain.AssignmentRule, error)
	GetRule(ctx context.Context, id, tenantID uuid.UUID) (domain.AssignmentRule, error)
	ListRules(ctx context.Context, tenantID uuid.UUID) ([]domain.AssignmentRule, error)
	ListActiveRules(ctx context.Context, tenantID uuid.UUID) ([]domain.AssignmentRule, error)
	DeleteRule(ctx context.Context, id, tenantID uuid.UUID) error
}

// LeadStore provides read access to lead snapshots and write access to the
// owner and score fields. Everything else about leads belongs to the CRM.
type LeadStore interface {
	GetLead(ctx context.Context, leadID, tenantID uuid.UUID) (domain.Lead, error)
	UpdateLeadOwner(ctx context.Context, leadID, tenantID uuid.UUID, ownerUserID uuid.UUID) error
	UpdateLeadScore(ctx context.Context, leadID, tenantID uuid.UUID, score int) error
}

// QueueStore persists routing queue entries.
type QueueStore interface {
	Enqueue(ctx context.Context, params repository.EnqueueParams) (domain.RoutingQueueEntry, error)
	ClaimPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.RoutingQueueEntry, error)
	MarkAssigned(ctx context.Context, id, tenantID uuid.UUID, userID uuid.UUID, ruleID *uuid.UUID) error
	MarkRetry(ctx context.Context, id, tenantID uuid.UUID, reason string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id, tenantID uuid.UUID, reason string) error
	ListQueueEntries(ctx context.Context, tenantID uuid.UUID, status *domain.QueueStatus, limit int) ([]domain.RoutingQueueEntry, error)
}

// HistoryStore appends and reads assignment audit records.
type HistoryStore interface {
	RecordAssignment(ctx context.Context, params repository.RecordParams) (domain.AssignmentHistory, error)
	ListHistoryByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.AssignmentHistory, error)
}

// WorkloadStore lists per-user workloads and toggles availability/capacity.
// Increment/decrement go through the tracker, not this interface.
type WorkloadStore interface {
	SetAvailability(ctx context.Context, tenantID, userID uuid.UUID, available bool) error
	SetCapacity(ctx context.Context, tenantID, userID uuid.UUID, capacity int) error
	ListWorkloads(ctx context.Context, tenantID uuid.UUID) ([]domain.UserWorkload, error)
}

// TeamExpander resolves a rule's candidate team ids into member user ids.
type TeamExpander interface {
	ExpandTeams(ctx context.Context, tenantID uuid.UUID, teamIDs []uuid.UUID) ([]uuid.UUID, error)
}

// RetryScheduler requests a future queue drain after an entry is queued or
// returned to Pending.
type RetryScheduler interface {
	ScheduleQueueDrain(ctx context.Context, tenantID uuid.UUID, delay time.Duration) error
}

// NopScheduler satisfies RetryScheduler when no background runner is wired,
// relying on the periodic drain alone.
type NopScheduler struct{}

func (NopScheduler) ScheduleQueueDrain(context.Context, uuid.UUID, time.Duration) error { return nil }

// Config is the subset of app configuration the routing service reads.
type Config interface {
	GetRoutingMaxAttempts() int
	GetRoutingRetryBackoff() time.Duration
	GetRoutingBatchSize() int
}

type Service struct {
	rules      RuleStore
	leads      LeadStore
	queue      QueueStore
	history    HistoryStore
	workloads  WorkloadStore
	tracker    *workload.Tracker
	engine     *engine.Engine
	dispatcher *strategy.Dispatcher
	directory  TeamExpander
	scheduler  RetryScheduler
	bus        platformevents.Bus
	cfg        Config
	log        *logger.Logger
}

type Deps struct {
	Rules      RuleStore
	Leads      LeadStore
	Queue      QueueStore
	History    HistoryStore
	Workloads  WorkloadStore
	Tracker    *workload.Tracker
	Engine     *engine.Engine
	Dispatcher *strategy.Dispatcher
	Directory  TeamExpander
	Scheduler  RetryScheduler
	Bus        platformevents.Bus
	Config     Config
	Logger     *logger.Logger
}

func New(deps Deps) *Service {
	if deps.Scheduler == nil {
		deps.Scheduler = NopScheduler{}
	}
	return &Service{
		rules:      deps.Rules,
		leads:      deps.Leads,
		queue:      deps.Queue,
		history:    deps.History,
		workloads:  deps.Workloads,
		tracker:    deps.Tracker,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		directory:  deps.Directory,
		scheduler:  deps.Scheduler,
		bus:        deps.Bus,
		cfg:        deps.Config,
		log:        deps.Logger,
	}
}

func (s *Service) maxAttempts() int {
	if n := s.cfg.GetRoutingMaxAttempts(); n > 0 {
		return n
	}
	return domain.DefaultMaxAttempts
}

// retryBackoff returns the delay before the next claim may pick an entry up,
// doubling per attempt already made.
func (s *Service) retryBackoff(attemptsMade int) time.Duration {
	base := s.cfg.GetRoutingRetryBackoff()
	if base <= 0 {
		base = 5 * time.Minute
	}
	d := base
	for i := 1; i < attemptsMade; i++ {
		d *= 2
	}
	return d
}

func (s *Service) publish(ctx context.Context, event platformevents.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

// candidatePool merges a rule's direct user ids with its expanded team
// members, deduplicated, direct users first so list order stays stable for
// tie-breaking.
func (s *Service) candidatePool(ctx context.Context, tenantID uuid.UUID, rule *domain.AssignmentRule) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(rule.CandidateUserIDs))
	pool := make([]uuid.UUID, 0, len(rule.CandidateUserIDs))
	for _, id := range rule.CandidateUserIDs {
		if !seen[id] {
			seen[id] = true
			pool = append(pool, id)
		}
	}
	if len(rule.CandidateTeamIDs) > 0 && s.directory != nil {
		members, err := s.directory.ExpandTeams(ctx, tenantID, rule.CandidateTeamIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			if !seen[id] {
				seen[id] = true
				pool = append(pool, id)
			}
		}
	}
	return pool, nil
}
