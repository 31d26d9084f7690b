package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crm_routing_backend/internal/events"
	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/transport"

	"github.com/google/uuid"
)

// ProcessRoutingQueue claims up to batchSize due Pending entries and
// re-attempts routing for each. Invoked by the background scheduler.
// Each entry independently ends Assigned, back in Pending with backoff, or
// Failed once attempts are exhausted.
func (s *Service) ProcessRoutingQueue(ctx context.Context, tenantID uuid.UUID, batchSize int) (transport.ProcessQueueResponse, error) {
	if batchSize < 1 {
		batchSize = s.cfg.GetRoutingBatchSize()
	}
	if batchSize < 1 {
		batchSize = 25
	}

	entries, err := s.queue.ClaimPending(ctx, tenantID, batchSize)
	if err != nil {
		return transport.ProcessQueueResponse{}, err
	}

	report := transport.ProcessQueueResponse{Claimed: len(entries)}
	for _, entry := range entries {
		outcome := s.processEntry(ctx, entry)
		switch outcome {
		case domain.QueueAssigned:
			report.Assigned++
		case domain.QueuePending:
			report.Retried++
		case domain.QueueFailed:
			report.Failed++
		}
	}

	if report.Retried > 0 {
		if err := s.scheduler.ScheduleQueueDrain(ctx, tenantID, s.retryBackoff(1)); err != nil {
			s.log.WithContext(ctx).Warn("failed to schedule queue drain", slog.String("error", err.Error()))
		}
	}
	return report, nil
}

// processEntry runs one routing attempt for a claimed entry and returns the
// status it ended in.
func (s *Service) processEntry(ctx context.Context, entry domain.RoutingQueueEntry) domain.QueueStatus {
	lead, err := s.leads.GetLead(ctx, entry.LeadID, entry.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lead deleted while queued; nothing left to route.
			return s.failEntry(ctx, entry, "lead no longer exists")
		}
		return s.retryOrFail(ctx, entry, "lead fetch failed: "+err.Error())
	}

	lead = s.refreshScore(ctx, lead)

	rules, err := s.rules.ListActiveRules(ctx, entry.TenantID)
	if err != nil {
		return s.retryOrFail(ctx, entry, "rule fetch failed: "+err.Error())
	}

	rule := s.engine.Evaluate(lead, rules)
	if rule == nil {
		if lead.HasOwner() {
			// Owner was set while the entry waited; resolve without
			// reassigning.
			return s.resolveEntry(ctx, entry, *lead.OwnerUserID, nil)
		}
		return s.retryOrFail(ctx, entry, "no matching rule")
	}

	pool, err := s.candidatePool(ctx, entry.TenantID, rule)
	if err != nil {
		return s.retryOrFail(ctx, entry, "candidate expansion failed: "+err.Error())
	}

	userID, ok, err := s.dispatcher.Select(ctx, rule, pool)
	if err != nil {
		return s.retryOrFail(ctx, entry, "dispatch failed: "+err.Error())
	}
	if !ok {
		return s.retryOrFail(ctx, entry, "no available candidate for rule "+rule.Name)
	}

	// Queue attempts have no human actor; uuid.Nil marks the system.
	if err := s.completeAssignment(ctx, lead, userID, &rule.ID, domain.MethodRuleBased, "assigned from routing queue via rule "+rule.Name, uuid.Nil); err != nil {
		return s.retryOrFail(ctx, entry, "assignment failed: "+err.Error())
	}
	return s.resolveEntry(ctx, entry, userID, &rule.ID)
}

func (s *Service) resolveEntry(ctx context.Context, entry domain.RoutingQueueEntry, userID uuid.UUID, ruleID *uuid.UUID) domain.QueueStatus {
	if err := s.queue.MarkAssigned(ctx, entry.ID, entry.TenantID, userID, ruleID); err != nil {
		s.log.DatabaseError("queue mark assigned", err)
	}
	return domain.QueueAssigned
}

// retryOrFail returns the entry to Pending with backoff, or terminates it
// as Failed when this attempt was the last one allowed.
func (s *Service) retryOrFail(ctx context.Context, entry domain.RoutingQueueEntry, reason string) domain.QueueStatus {
	attemptsMade := entry.AttemptCount + 1
	if attemptsMade >= entry.MaxAttempts {
		return s.failEntry(ctx, entry, reason)
	}

	next := time.Now().Add(s.retryBackoff(attemptsMade))
	if err := s.queue.MarkRetry(ctx, entry.ID, entry.TenantID, reason, next); err != nil {
		s.log.DatabaseError("queue mark retry", err)
	}
	s.log.RoutingEvent("routing attempt failed, will retry", entry.TenantID.String(), entry.LeadID.String(),
		slog.String("reason", reason),
		slog.Int("attempt", attemptsMade),
		slog.Int("max_attempts", entry.MaxAttempts))
	return domain.QueuePending
}

func (s *Service) failEntry(ctx context.Context, entry domain.RoutingQueueEntry, reason string) domain.QueueStatus {
	if err := s.queue.MarkFailed(ctx, entry.ID, entry.TenantID, reason); err != nil {
		s.log.DatabaseError("queue mark failed", err)
	}
	s.publish(ctx, events.LeadRoutingFailed{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  entry.TenantID,
		LeadID:    entry.LeadID,
		Reason:    reason,
		Attempts:  entry.AttemptCount + 1,
	})
	s.log.RoutingEvent("routing attempts exhausted, manual assignment required", entry.TenantID.String(), entry.LeadID.String(),
		slog.String("reason", reason))
	return domain.QueueFailed
}

// ListQueue returns a tenant's queue entries, optionally filtered by status.
func (s *Service) ListQueue(ctx context.Context, tenantID uuid.UUID, req transport.ListQueueRequest) ([]transport.QueueEntryResponse, error) {
	var status *domain.QueueStatus
	if req.Status != nil {
		st := domain.QueueStatus(*req.Status)
		status = &st
	}
	entries, err := s.queue.ListQueueEntries(ctx, tenantID, status, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]transport.QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transport.QueueEntryFromDomain(e))
	}
	return out, nil
}

// ListHistory returns a lead's assignment audit trail, oldest first.
func (s *Service) ListHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]transport.HistoryEntryResponse, error) {
	records, err := s.history.ListHistoryByLead(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.HistoryEntryResponse, 0, len(records))
	for _, h := range records {
		out = append(out, transport.HistoryFromDomain(h))
	}
	return out, nil
}
