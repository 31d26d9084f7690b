package service

import (
	"context"
	"errors"
	"log/slog"

	"crm_routing_backend/internal/events"
	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/scoring"
	"crm_routing_backend/internal/routing/transport"

	"github.com/google/uuid"
)

// AssignLead routes a lead through the rule engine and strategy dispatcher.
// Called on lead creation and on manual re-trigger. When the matched rule's
// candidates are all unavailable the lead is queued for retry; when no rule
// matches, the default fallback keeps the current owner or assigns the actor.
func (s *Service) AssignLead(ctx context.Context, tenantID, leadID, actorID uuid.UUID) (transport.AssignmentResponse, error) {
	lead, err := s.leads.GetLead(ctx, leadID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.AssignmentResponse{}, ErrLeadNotFound
		}
		return transport.AssignmentResponse{}, err
	}

	lead = s.refreshScore(ctx, lead)

	rules, err := s.rules.ListActiveRules(ctx, tenantID)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	rule := s.engine.Evaluate(lead, rules)
	if rule == nil {
		return s.assignDefault(ctx, lead, actorID)
	}

	pool, err := s.candidatePool(ctx, tenantID, rule)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	userID, ok, err := s.dispatcher.Select(ctx, rule, pool)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}
	if !ok {
		return s.enqueueLead(ctx, lead, "no available candidate for rule "+rule.Name)
	}

	if err := s.completeAssignment(ctx, lead, userID, &rule.ID, domain.MethodRuleBased, "matched rule "+rule.Name, actorID); err != nil {
		return transport.AssignmentResponse{}, err
	}
	return transport.AssignmentResponse{
		LeadID: lead.ID,
		UserID: &userID,
		RuleID: &rule.ID,
		Method: string(domain.MethodRuleBased),
	}, nil
}

// ReassignLead is the manual override path. It bypasses the availability
// gate, releases the previous owner's slot, and records a Manual history row.
func (s *Service) ReassignLead(ctx context.Context, tenantID, leadID, newUserID, actorID uuid.UUID, reason string) error {
	lead, err := s.leads.GetLead(ctx, leadID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLeadNotFound
		}
		return err
	}

	if err := s.leads.UpdateLeadOwner(ctx, leadID, tenantID, newUserID); err != nil {
		return err
	}

	if lead.OwnerUserID != nil && *lead.OwnerUserID != newUserID {
		if err := s.tracker.Decrement(ctx, tenantID, *lead.OwnerUserID); err != nil {
			s.log.DatabaseError("workload decrement", err)
		}
	}
	if lead.OwnerUserID == nil || *lead.OwnerUserID != newUserID {
		if err := s.tracker.Increment(ctx, tenantID, newUserID); err != nil {
			s.log.DatabaseError("workload increment", err)
		}
	}

	s.recordHistory(ctx, repository.RecordParams{
		TenantID:   tenantID,
		LeadID:     leadID,
		FromUserID: lead.OwnerUserID,
		ToUserID:   newUserID,
		Method:     domain.MethodManual,
		Reason:     reason,
		ActorID:    actorID,
	})

	s.publish(ctx, events.LeadReassigned{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   tenantID,
		LeadID:     leadID,
		FromUserID: lead.OwnerUserID,
		ToUserID:   newUserID,
		ActorID:    actorID,
	})
	s.log.RoutingEvent("lead reassigned", tenantID.String(), leadID.String(),
		slog.String("to_user_id", newUserID.String()))
	return nil
}

// assignDefault is the terminal fallback when no rule matches: keep the
// current owner if there is one, otherwise assign the triggering actor.
// Never queued, since there is always a value to fall back to.
func (s *Service) assignDefault(ctx context.Context, lead domain.Lead, actorID uuid.UUID) (transport.AssignmentResponse, error) {
	if lead.HasOwner() {
		owner := *lead.OwnerUserID
		s.recordHistory(ctx, repository.RecordParams{
			TenantID:   lead.TenantID,
			LeadID:     lead.ID,
			FromUserID: lead.OwnerUserID,
			ToUserID:   owner,
			Method:     domain.MethodDefault,
			Reason:     "no matching rule; retained current owner",
			ActorID:    actorID,
		})
		s.log.RoutingEvent("default fallback retained owner", lead.TenantID.String(), lead.ID.String(),
			slog.String("owner_user_id", owner.String()))
		return transport.AssignmentResponse{
			LeadID: lead.ID,
			UserID: &owner,
			Method: string(domain.MethodDefault),
		}, nil
	}

	if err := s.completeAssignment(ctx, lead, actorID, nil, domain.MethodDefault, "no matching rule; assigned to actor", actorID); err != nil {
		return transport.AssignmentResponse{}, err
	}
	return transport.AssignmentResponse{
		LeadID: lead.ID,
		UserID: &actorID,
		Method: string(domain.MethodDefault),
	}, nil
}

// completeAssignment applies the user-facing side effect (owner change)
// first; workload and history failures afterwards are logged, never allowed
// to undo the assignment.
func (s *Service) completeAssignment(ctx context.Context, lead domain.Lead, userID uuid.UUID, ruleID *uuid.UUID, method domain.AssignmentMethod, reason string, actorID uuid.UUID) error {
	if err := s.leads.UpdateLeadOwner(ctx, lead.ID, lead.TenantID, userID); err != nil {
		return err
	}

	if lead.OwnerUserID != nil && *lead.OwnerUserID != userID {
		if err := s.tracker.Decrement(ctx, lead.TenantID, *lead.OwnerUserID); err != nil {
			s.log.DatabaseError("workload decrement", err)
		}
	}
	if lead.OwnerUserID == nil || *lead.OwnerUserID != userID {
		if err := s.tracker.Increment(ctx, lead.TenantID, userID); err != nil {
			s.log.DatabaseError("workload increment", err)
		}
	}

	s.recordHistory(ctx, repository.RecordParams{
		TenantID:   lead.TenantID,
		LeadID:     lead.ID,
		RuleID:     ruleID,
		FromUserID: lead.OwnerUserID,
		ToUserID:   userID,
		Method:     method,
		Reason:     reason,
		ActorID:    actorID,
	})

	s.publish(ctx, events.LeadAssigned{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  lead.TenantID,
		LeadID:    lead.ID,
		UserID:    userID,
		RuleID:    ruleID,
		Method:    method,
	})
	s.log.RoutingEvent("lead assigned", lead.TenantID.String(), lead.ID.String(),
		slog.String("user_id", userID.String()),
		slog.String("method", string(method)))
	return nil
}

// enqueueLead places a lead on the routing queue and schedules a drain.
func (s *Service) enqueueLead(ctx context.Context, lead domain.Lead, reason string) (transport.AssignmentResponse, error) {
	entry, err := s.queue.Enqueue(ctx, repository.EnqueueParams{
		TenantID:      lead.TenantID,
		LeadID:        lead.ID,
		PriorityScore: lead.Score,
		MaxAttempts:   s.maxAttempts(),
		FailureReason: reason,
	})
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	if err := s.scheduler.ScheduleQueueDrain(ctx, lead.TenantID, s.retryBackoff(entry.AttemptCount)); err != nil {
		s.log.WithContext(ctx).Warn("failed to schedule queue drain", slog.String("error", err.Error()))
	}

	s.publish(ctx, events.LeadRoutingQueued{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  lead.TenantID,
		LeadID:    lead.ID,
		Reason:    reason,
		Attempt:   entry.AttemptCount,
	})
	s.log.RoutingEvent("lead queued for retry", lead.TenantID.String(), lead.ID.String(),
		slog.String("reason", reason))
	return transport.AssignmentResponse{
		LeadID:  lead.ID,
		Queued:  true,
		QueueID: &entry.ID,
	}, nil
}

// refreshScore recomputes the lead's score and persists it when it changed.
// Persistence is best effort; routing proceeds with the fresh value either
// way.
func (s *Service) refreshScore(ctx context.Context, lead domain.Lead) domain.Lead {
	breakdown := scoring.Score(lead)
	if breakdown.Total != lead.Score {
		if err := s.leads.UpdateLeadScore(ctx, lead.ID, lead.TenantID, breakdown.Total); err != nil {
			s.log.DatabaseError("lead score update", err)
		}
		lead.Score = breakdown.Total
	}
	return lead
}

// recordHistory appends an audit row. Losing an audit row is recoverable,
// silently un-assigning a lead is not, so failures are logged and swallowed.
func (s *Service) recordHistory(ctx context.Context, params repository.RecordParams) {
	if _, err := s.history.RecordAssignment(ctx, params); err != nil {
		s.log.DatabaseError("assignment history insert", err)
	}
}
