package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/internal/routing/engine"
	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/strategy"
	"crm_routing_backend/internal/routing/transport"
	"crm_routing_backend/internal/routing/workload"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead
}

func newFakeLeads(leads ...domain.Lead) *fakeLeads {
	s := &fakeLeads{leads: make(map[uuid.UUID]domain.Lead)}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeLeads) GetLead(_ context.Context, leadID, _ uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *fakeLeads) UpdateLeadOwner(_ context.Context, leadID, _ uuid.UUID, ownerUserID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	lead.OwnerUserID = &ownerUserID
	s.leads[leadID] = lead
	return nil
}

func (s *fakeLeads) UpdateLeadScore(_ context.Context, leadID, _ uuid.UUID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return repository.ErrNotFound
	}
	lead.Score = score
	s.leads[leadID] = lead
	return nil
}

func (s *fakeLeads) owner(leadID uuid.UUID) *uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leads[leadID].OwnerUserID
}

type fakeRules struct {
	rules []domain.AssignmentRule
}

func (s *fakeRules) CreateRule(_ context.Context, params repository.CreateRuleParams) (domain.AssignmentRule, error) {
	rule := domain.AssignmentRule{
		ID:               uuid.New(),
		TenantID:         params.TenantID,
		Name:             params.Name,
		PriorityOrder:    params.PriorityOrder,
		IsActive:         params.IsActive,
		Conditions:       params.Conditions,
		Strategy:         params.Strategy,
		CandidateUserIDs: params.CandidateUserIDs,
		CandidateTeamIDs: params.CandidateTeamIDs,
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *fakeRules) UpdateRule(_ context.Context, id, _ uuid.UUID, params repository.UpdateRuleParams) (domain.AssignmentRule, error) {
	for i, r := range s.rules {
		if r.ID == id {
			r.Name = params.Name
			r.PriorityOrder = params.PriorityOrder
			r.IsActive = params.IsActive
			r.Conditions = params.Conditions
			r.Strategy = params.Strategy
			r.CandidateUserIDs = params.CandidateUserIDs
			r.CandidateTeamIDs = params.CandidateTeamIDs
			s.rules[i] = r
			return r, nil
		}
	}
	return domain.AssignmentRule{}, repository.ErrNotFound
}

func (s *fakeRules) GetRule(_ context.Context, id, _ uuid.UUID) (domain.AssignmentRule, error) {
	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.AssignmentRule{}, repository.ErrNotFound
}

func (s *fakeRules) ListRules(_ context.Context, _ uuid.UUID) ([]domain.AssignmentRule, error) {
	return append([]domain.AssignmentRule(nil), s.rules...), nil
}

func (s *fakeRules) ListActiveRules(_ context.Context, _ uuid.UUID) ([]domain.AssignmentRule, error) {
	active := make([]domain.AssignmentRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *fakeRules) DeleteRule(_ context.Context, id, _ uuid.UUID) error {
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type retryCall struct {
	id            uuid.UUID
	reason        string
	nextAttemptAt time.Time
}

type fakeQueue struct {
	entries  []domain.RoutingQueueEntry
	assigned map[uuid.UUID]uuid.UUID
	retries  []retryCall
	failed   map[uuid.UUID]string
}

func newFakeQueue(entries ...domain.RoutingQueueEntry) *fakeQueue {
	return &fakeQueue{
		entries:  entries,
		assigned: make(map[uuid.UUID]uuid.UUID),
		failed:   make(map[uuid.UUID]string),
	}
}

func (q *fakeQueue) Enqueue(_ context.Context, params repository.EnqueueParams) (domain.RoutingQueueEntry, error) {
	entry := domain.RoutingQueueEntry{
		ID:            uuid.New(),
		TenantID:      params.TenantID,
		LeadID:        params.LeadID,
		Status:        domain.QueuePending,
		PriorityScore: params.PriorityScore,
		MaxAttempts:   params.MaxAttempts,
		FailureReason: params.FailureReason,
	}
	q.entries = append(q.entries, entry)
	return entry, nil
}

func (q *fakeQueue) ClaimPending(_ context.Context, _ uuid.UUID, limit int) ([]domain.RoutingQueueEntry, error) {
	claimed := make([]domain.RoutingQueueEntry, 0, limit)
	for _, e := range q.entries {
		if e.Status == domain.QueuePending && len(claimed) < limit {
			claimed = append(claimed, e)
		}
	}
	return claimed, nil
}

func (q *fakeQueue) MarkAssigned(_ context.Context, id, _ uuid.UUID, userID uuid.UUID, _ *uuid.UUID) error {
	q.assigned[id] = userID
	return nil
}

func (q *fakeQueue) MarkRetry(_ context.Context, id, _ uuid.UUID, reason string, nextAttemptAt time.Time) error {
	q.retries = append(q.retries, retryCall{id: id, reason: reason, nextAttemptAt: nextAttemptAt})
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id, _ uuid.UUID, reason string) error {
	q.failed[id] = reason
	return nil
}

func (q *fakeQueue) ListQueueEntries(_ context.Context, _ uuid.UUID, status *domain.QueueStatus, _ int) ([]domain.RoutingQueueEntry, error) {
	out := make([]domain.RoutingQueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if status == nil || e.Status == *status {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeHistory struct {
	records []domain.AssignmentHistory
}

func (h *fakeHistory) RecordAssignment(_ context.Context, params repository.RecordParams) (domain.AssignmentHistory, error) {
	record := domain.AssignmentHistory{
		ID:         uuid.New(),
		TenantID:   params.TenantID,
		LeadID:     params.LeadID,
		RuleID:     params.RuleID,
		FromUserID: params.FromUserID,
		ToUserID:   params.ToUserID,
		Method:     params.Method,
		Reason:     params.Reason,
		ActorID:    params.ActorID,
		CreatedAt:  time.Now().UTC(),
	}
	h.records = append(h.records, record)
	return record, nil
}

func (h *fakeHistory) ListHistoryByLead(_ context.Context, _, leadID uuid.UUID) ([]domain.AssignmentHistory, error) {
	out := make([]domain.AssignmentHistory, 0, len(h.records))
	for _, r := range h.records {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeScheduler struct {
	drains []time.Duration
}

func (s *fakeScheduler) ScheduleQueueDrain(_ context.Context, _ uuid.UUID, delay time.Duration) error {
	s.drains = append(s.drains, delay)
	return nil
}

type fakeConfig struct {
	maxAttempts int
	backoff     time.Duration
	batchSize   int
}

func (c fakeConfig) GetRoutingMaxAttempts() int            { return c.maxAttempts }
func (c fakeConfig) GetRoutingRetryBackoff() time.Duration { return c.backoff }
func (c fakeConfig) GetRoutingBatchSize() int              { return c.batchSize }

type testEnv struct {
	svc       *Service
	leads     *fakeLeads
	rules     *fakeRules
	queue     *fakeQueue
	history   *fakeHistory
	scheduler *fakeScheduler
	tracker   *workload.Tracker
	workloads *workload.MemoryStore
}

func newTestEnv(t *testing.T, leads ...domain.Lead) *testEnv {
	t.Helper()

	log := logger.New("development")
	store := workload.NewMemoryStore()
	tracker := workload.NewTracker(store, 5, log)

	env := &testEnv{
		leads:     newFakeLeads(leads...),
		rules:     &fakeRules{},
		queue:     newFakeQueue(),
		history:   &fakeHistory{},
		scheduler: &fakeScheduler{},
		tracker:   tracker,
		workloads: store,
	}
	env.svc = New(Deps{
		Rules:      env.rules,
		Leads:      env.leads,
		Queue:      env.queue,
		History:    env.history,
		Tracker:    tracker,
		Engine:     engine.New(log),
		Dispatcher: strategy.NewDispatcher(strategy.NewMemoryCursorStore(), tracker, log),
		Scheduler:  env.scheduler,
		Config:     fakeConfig{maxAttempts: 3, backoff: time.Minute, batchSize: 10},
		Logger:     log,
	})
	return env
}

func testLead(tenantID uuid.UUID) domain.Lead {
	return domain.Lead{
		ID:       uuid.New(),
		TenantID: tenantID,
		Email:    "lead@example.com",
		Source:   domain.SourceWebsite,
		Status:   domain.StatusNew,
	}
}

func matchAllRule(tenantID uuid.UUID, candidates ...uuid.UUID) domain.AssignmentRule {
	return domain.AssignmentRule{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Name:             "catch-all",
		PriorityOrder:    1,
		IsActive:         true,
		Strategy:         domain.StrategyRoundRobin,
		CandidateUserIDs: candidates,
	}
}

func TestAssignLeadRuleBased(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	actorID := uuid.New()
	candidate := uuid.New()

	env := newTestEnv(t, lead)
	rule := matchAllRule(tenantID, candidate)
	env.rules.rules = []domain.AssignmentRule{rule}

	resp, err := env.svc.AssignLead(context.Background(), tenantID, lead.ID, actorID)
	if err != nil {
		t.Fatalf("AssignLead failed: %v", err)
	}

	if resp.UserID == nil || *resp.UserID != candidate {
		t.Fatalf("UserID = %v, want %s", resp.UserID, candidate)
	}
	if resp.Method != string(domain.MethodRuleBased) {
		t.Errorf("Method = %q, want RuleBased", resp.Method)
	}
	if resp.Queued {
		t.Error("successful assignment must not report queued")
	}

	if owner := env.leads.owner(lead.ID); owner == nil || *owner != candidate {
		t.Errorf("lead owner = %v, want %s", owner, candidate)
	}

	w, _ := env.tracker.Get(context.Background(), tenantID, candidate)
	if w.ActiveLeadsCount != 1 {
		t.Errorf("candidate active leads = %d, want 1", w.ActiveLeadsCount)
	}

	if len(env.history.records) != 1 {
		t.Fatalf("got %d history rows, want 1", len(env.history.records))
	}
	record := env.history.records[0]
	if record.Method != domain.MethodRuleBased {
		t.Errorf("history method = %s, want RuleBased", record.Method)
	}
	if record.ToUserID != candidate {
		t.Errorf("history ToUserID = %s, want %s", record.ToUserID, candidate)
	}
	if record.ActorID != actorID {
		t.Errorf("history ActorID = %s, want %s", record.ActorID, actorID)
	}
	if record.RuleID == nil || *record.RuleID != rule.ID {
		t.Errorf("history RuleID = %v, want %s", record.RuleID, rule.ID)
	}
	if record.FromUserID != nil {
		t.Errorf("history FromUserID = %v, want nil for an unowned lead", record.FromUserID)
	}
}

func TestAssignLeadQueuesWhenCandidatesExhausted(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	candidate := uuid.New()

	env := newTestEnv(t, lead)
	env.rules.rules = []domain.AssignmentRule{matchAllRule(tenantID, candidate)}
	if err := env.workloads.SetAvailability(context.Background(), tenantID, candidate, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}

	resp, err := env.svc.AssignLead(context.Background(), tenantID, lead.ID, uuid.New())
	if err != nil {
		t.Fatalf("AssignLead failed: %v", err)
	}

	if !resp.Queued {
		t.Fatal("exhausted candidates should queue the lead, not error")
	}
	if resp.QueueID == nil {
		t.Fatal("queued response must carry the queue entry id")
	}
	if resp.UserID != nil {
		t.Errorf("queued response UserID = %v, want nil", resp.UserID)
	}

	if len(env.queue.entries) != 1 {
		t.Fatalf("got %d queue entries, want 1", len(env.queue.entries))
	}
	entry := env.queue.entries[0]
	if entry.Status != domain.QueuePending {
		t.Errorf("entry status = %s, want Pending", entry.Status)
	}
	if entry.MaxAttempts != 3 {
		t.Errorf("entry MaxAttempts = %d, want 3", entry.MaxAttempts)
	}
	if owner := env.leads.owner(lead.ID); owner != nil {
		t.Errorf("queued lead should remain unowned, got owner %s", owner)
	}
	if len(env.scheduler.drains) != 1 {
		t.Errorf("got %d drain requests, want 1", len(env.scheduler.drains))
	}
}

func TestAssignLeadDefaultKeepsOwner(t *testing.T) {
	tenantID := uuid.New()
	owner := uuid.New()
	lead := testLead(tenantID)
	lead.OwnerUserID = &owner

	env := newTestEnv(t, lead)

	resp, err := env.svc.AssignLead(context.Background(), tenantID, lead.ID, uuid.New())
	if err != nil {
		t.Fatalf("AssignLead failed: %v", err)
	}

	if resp.Method != string(domain.MethodDefault) {
		t.Errorf("Method = %q, want Default", resp.Method)
	}
	if resp.UserID == nil || *resp.UserID != owner {
		t.Fatalf("UserID = %v, want retained owner %s", resp.UserID, owner)
	}
	if resp.Queued {
		t.Error("default fallback must never queue")
	}

	w, _ := env.tracker.Get(context.Background(), tenantID, owner)
	if w.ActiveLeadsCount != 0 {
		t.Errorf("retaining the owner must not re-count the lead, active = %d", w.ActiveLeadsCount)
	}

	if len(env.history.records) != 1 {
		t.Fatalf("got %d history rows, want 1", len(env.history.records))
	}
	if env.history.records[0].Method != domain.MethodDefault {
		t.Errorf("history method = %s, want Default", env.history.records[0].Method)
	}
}

func TestAssignLeadDefaultAssignsActor(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	actorID := uuid.New()

	env := newTestEnv(t, lead)

	resp, err := env.svc.AssignLead(context.Background(), tenantID, lead.ID, actorID)
	if err != nil {
		t.Fatalf("AssignLead failed: %v", err)
	}

	if resp.UserID == nil || *resp.UserID != actorID {
		t.Fatalf("UserID = %v, want actor %s", resp.UserID, actorID)
	}
	if owner := env.leads.owner(lead.ID); owner == nil || *owner != actorID {
		t.Errorf("lead owner = %v, want actor %s", owner, actorID)
	}

	w, _ := env.tracker.Get(context.Background(), tenantID, actorID)
	if w.ActiveLeadsCount != 1 {
		t.Errorf("actor active leads = %d, want 1", w.ActiveLeadsCount)
	}
}

func TestAssignLeadNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.AssignLead(context.Background(), uuid.New(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("err = %v, want ErrLeadNotFound", err)
	}
}

func TestAssignLeadSkipsUnavailableCandidate(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	full := uuid.New()
	open := uuid.New()

	env := newTestEnv(t, lead)
	env.rules.rules = []domain.AssignmentRule{matchAllRule(tenantID, full, open)}
	if err := env.workloads.SetAvailability(context.Background(), tenantID, full, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}

	resp, err := env.svc.AssignLead(context.Background(), tenantID, lead.ID, uuid.New())
	if err != nil {
		t.Fatalf("AssignLead failed: %v", err)
	}
	if resp.UserID == nil || *resp.UserID != open {
		t.Fatalf("UserID = %v, want the available candidate %s", resp.UserID, open)
	}
}

func TestReassignLead(t *testing.T) {
	tenantID := uuid.New()
	oldOwner := uuid.New()
	newOwner := uuid.New()
	actorID := uuid.New()
	lead := testLead(tenantID)
	lead.OwnerUserID = &oldOwner

	env := newTestEnv(t, lead)
	if err := env.tracker.Increment(context.Background(), tenantID, oldOwner); err != nil {
		t.Fatalf("seed increment failed: %v", err)
	}

	if err := env.svc.ReassignLead(context.Background(), tenantID, lead.ID, newOwner, actorID, "handover"); err != nil {
		t.Fatalf("ReassignLead failed: %v", err)
	}

	if owner := env.leads.owner(lead.ID); owner == nil || *owner != newOwner {
		t.Fatalf("lead owner = %v, want %s", owner, newOwner)
	}

	oldW, _ := env.tracker.Get(context.Background(), tenantID, oldOwner)
	if oldW.ActiveLeadsCount != 0 {
		t.Errorf("old owner active leads = %d, want released to 0", oldW.ActiveLeadsCount)
	}
	newW, _ := env.tracker.Get(context.Background(), tenantID, newOwner)
	if newW.ActiveLeadsCount != 1 {
		t.Errorf("new owner active leads = %d, want 1", newW.ActiveLeadsCount)
	}

	if len(env.history.records) != 1 {
		t.Fatalf("got %d history rows, want 1", len(env.history.records))
	}
	record := env.history.records[0]
	if record.Method != domain.MethodManual {
		t.Errorf("history method = %s, want Manual", record.Method)
	}
	if record.FromUserID == nil || *record.FromUserID != oldOwner {
		t.Errorf("history FromUserID = %v, want %s", record.FromUserID, oldOwner)
	}
	if record.Reason != "handover" {
		t.Errorf("history reason = %q, want %q", record.Reason, "handover")
	}
}

func TestReassignLeadBypassesAvailabilityGate(t *testing.T) {
	tenantID := uuid.New()
	newOwner := uuid.New()
	lead := testLead(tenantID)

	env := newTestEnv(t, lead)
	if err := env.workloads.SetAvailability(context.Background(), tenantID, newOwner, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}

	if err := env.svc.ReassignLead(context.Background(), tenantID, lead.ID, newOwner, uuid.New(), "manager override"); err != nil {
		t.Fatalf("manual reassignment should ignore availability: %v", err)
	}
	if owner := env.leads.owner(lead.ID); owner == nil || *owner != newOwner {
		t.Fatalf("lead owner = %v, want %s", owner, newOwner)
	}
}

func TestProcessRoutingQueueAssigns(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	candidate := uuid.New()

	env := newTestEnv(t, lead)
	rule := matchAllRule(tenantID, candidate)
	env.rules.rules = []domain.AssignmentRule{rule}
	entry := domain.RoutingQueueEntry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		LeadID:      lead.ID,
		Status:      domain.QueuePending,
		MaxAttempts: 3,
	}
	env.queue.entries = append(env.queue.entries, entry)

	report, err := env.svc.ProcessRoutingQueue(context.Background(), tenantID, 10)
	if err != nil {
		t.Fatalf("ProcessRoutingQueue failed: %v", err)
	}

	if report.Claimed != 1 || report.Assigned != 1 || report.Retried != 0 || report.Failed != 0 {
		t.Fatalf("report = %+v, want one claimed and assigned", report)
	}
	if env.queue.assigned[entry.ID] != candidate {
		t.Errorf("entry resolved to %s, want %s", env.queue.assigned[entry.ID], candidate)
	}
	if owner := env.leads.owner(lead.ID); owner == nil || *owner != candidate {
		t.Errorf("lead owner = %v, want %s", owner, candidate)
	}

	if len(env.history.records) != 1 {
		t.Fatalf("got %d history rows, want 1", len(env.history.records))
	}
	if env.history.records[0].ActorID != uuid.Nil {
		t.Errorf("queue attempts have no human actor, ActorID = %s, want Nil", env.history.records[0].ActorID)
	}
}

func TestProcessRoutingQueueRetriesWithBackoff(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	candidate := uuid.New()

	env := newTestEnv(t, lead)
	env.rules.rules = []domain.AssignmentRule{matchAllRule(tenantID, candidate)}
	if err := env.workloads.SetAvailability(context.Background(), tenantID, candidate, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}
	entry := domain.RoutingQueueEntry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		LeadID:      lead.ID,
		Status:      domain.QueuePending,
		MaxAttempts: 3,
	}
	env.queue.entries = append(env.queue.entries, entry)

	before := time.Now()
	report, err := env.svc.ProcessRoutingQueue(context.Background(), tenantID, 10)
	if err != nil {
		t.Fatalf("ProcessRoutingQueue failed: %v", err)
	}

	if report.Retried != 1 {
		t.Fatalf("report = %+v, want one retried", report)
	}
	if len(env.queue.retries) != 1 {
		t.Fatalf("got %d retry calls, want 1", len(env.queue.retries))
	}
	retry := env.queue.retries[0]
	if retry.id != entry.ID {
		t.Errorf("retried entry %s, want %s", retry.id, entry.ID)
	}
	next := retry.nextAttemptAt
	if next.Before(before.Add(time.Minute)) || next.After(before.Add(2*time.Minute)) {
		t.Errorf("nextAttemptAt = %s, want roughly one backoff interval out", next)
	}
	if len(env.scheduler.drains) == 0 {
		t.Error("a retried entry should schedule a follow-up drain")
	}
}

func TestProcessRoutingQueueDoublesBackoffPerAttempt(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	candidate := uuid.New()

	env := newTestEnv(t, lead)
	env.rules.rules = []domain.AssignmentRule{matchAllRule(tenantID, candidate)}
	if err := env.workloads.SetAvailability(context.Background(), tenantID, candidate, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}
	entry := domain.RoutingQueueEntry{
		ID:           uuid.New(),
		TenantID:     tenantID,
		LeadID:       lead.ID,
		Status:       domain.QueuePending,
		AttemptCount: 1,
		MaxAttempts:  3,
	}
	env.queue.entries = append(env.queue.entries, entry)

	before := time.Now()
	if _, err := env.svc.ProcessRoutingQueue(context.Background(), tenantID, 10); err != nil {
		t.Fatalf("ProcessRoutingQueue failed: %v", err)
	}

	if len(env.queue.retries) != 1 {
		t.Fatalf("got %d retry calls, want 1", len(env.queue.retries))
	}
	next := env.queue.retries[0].nextAttemptAt
	if next.Before(before.Add(2*time.Minute)) || next.After(before.Add(3*time.Minute)) {
		t.Errorf("second attempt nextAttemptAt = %s, want doubled backoff", next)
	}
}

func TestProcessRoutingQueueFailsAfterMaxAttempts(t *testing.T) {
	tenantID := uuid.New()
	lead := testLead(tenantID)
	candidate := uuid.New()

	env := newTestEnv(t, lead)
	env.rules.rules = []domain.AssignmentRule{matchAllRule(tenantID, candidate)}
	if err := env.workloads.SetAvailability(context.Background(), tenantID, candidate, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}
	entry := domain.RoutingQueueEntry{
		ID:           uuid.New(),
		TenantID:     tenantID,
		LeadID:       lead.ID,
		Status:       domain.QueuePending,
		AttemptCount: 2,
		MaxAttempts:  3,
	}
	env.queue.entries = append(env.queue.entries, entry)

	report, err := env.svc.ProcessRoutingQueue(context.Background(), tenantID, 10)
	if err != nil {
		t.Fatalf("ProcessRoutingQueue failed: %v", err)
	}

	if report.Failed != 1 {
		t.Fatalf("report = %+v, want one failed", report)
	}
	if _, ok := env.queue.failed[entry.ID]; !ok {
		t.Error("entry should be marked Failed after its last attempt")
	}
	if len(env.queue.retries) != 0 {
		t.Errorf("got %d retry calls, want none on the final attempt", len(env.queue.retries))
	}
	if owner := env.leads.owner(lead.ID); owner != nil {
		t.Errorf("failed entry must leave the lead unowned, got %s", owner)
	}
}

func TestProcessRoutingQueueFailsDeletedLead(t *testing.T) {
	tenantID := uuid.New()
	env := newTestEnv(t)
	entry := domain.RoutingQueueEntry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		LeadID:      uuid.New(),
		Status:      domain.QueuePending,
		MaxAttempts: 3,
	}
	env.queue.entries = append(env.queue.entries, entry)

	report, err := env.svc.ProcessRoutingQueue(context.Background(), tenantID, 10)
	if err != nil {
		t.Fatalf("ProcessRoutingQueue failed: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v, want a deleted lead to fail its entry immediately", report)
	}
	if reason := env.queue.failed[entry.ID]; !strings.Contains(reason, "no longer exists") {
		t.Errorf("failure reason = %q, want it to name the missing lead", reason)
	}
}

func TestProcessRoutingQueueResolvesLeadOwnedMeanwhile(t *testing.T) {
	tenantID := uuid.New()
	owner := uuid.New()
	lead := testLead(tenantID)
	lead.OwnerUserID = &owner

	env := newTestEnv(t, lead)
	entry := domain.RoutingQueueEntry{
		ID:          uuid.New(),
		TenantID:    tenantID,
		LeadID:      lead.ID,
		Status:      domain.QueuePending,
		MaxAttempts: 3,
	}
	env.queue.entries = append(env.queue.entries, entry)

	report, err := env.svc.ProcessRoutingQueue(context.Background(), tenantID, 10)
	if err != nil {
		t.Fatalf("ProcessRoutingQueue failed: %v", err)
	}

	if report.Assigned != 1 {
		t.Fatalf("report = %+v, want the owned lead resolved as assigned", report)
	}
	if env.queue.assigned[entry.ID] != owner {
		t.Errorf("entry resolved to %s, want the existing owner %s", env.queue.assigned[entry.ID], owner)
	}
	if len(env.history.records) != 0 {
		t.Errorf("resolving to the existing owner must not add history, got %d rows", len(env.history.records))
	}
}

func TestCreateRuleValidation(t *testing.T) {
	env := newTestEnv(t)
	tenantID := uuid.New()

	tests := []struct {
		name string
		req  transport.CreateRuleRequest
	}{
		{
			name: "unknown strategy",
			req: transport.CreateRuleRequest{
				Name:             "bad",
				Strategy:         "FirstComeFirstServed",
				CandidateUserIDs: []uuid.UUID{uuid.New()},
			},
		},
		{
			name: "no candidates",
			req: transport.CreateRuleRequest{
				Name:     "bad",
				Strategy: string(domain.StrategyRoundRobin),
			},
		},
		{
			name: "inverted score range",
			req: transport.CreateRuleRequest{
				Name:     "bad",
				Strategy: string(domain.StrategyRoundRobin),
				Conditions: transport.RuleConditionsPayload{
					ScoreMin: intPtr(90),
					ScoreMax: intPtr(10),
				},
				CandidateUserIDs: []uuid.UUID{uuid.New()},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateRule(context.Background(), tenantID, tt.req)
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("err = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestUpdateRulePartial(t *testing.T) {
	env := newTestEnv(t)
	tenantID := uuid.New()

	created, err := env.svc.CreateRule(context.Background(), tenantID, transport.CreateRuleRequest{
		Name:             "hot leads",
		PriorityOrder:    1,
		Strategy:         string(domain.StrategyRoundRobin),
		CandidateUserIDs: []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	inactive := false
	updated, err := env.svc.UpdateRule(context.Background(), created.ID, tenantID, transport.UpdateRuleRequest{
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}

	if updated.IsActive {
		t.Error("IsActive should be updated to false")
	}
	if updated.Name != "hot leads" {
		t.Errorf("Name = %q, want untouched fields preserved", updated.Name)
	}
	if updated.Strategy != string(domain.StrategyRoundRobin) {
		t.Errorf("Strategy = %q, want untouched fields preserved", updated.Strategy)
	}
}

func TestScoreLeadPersistsChangedScore(t *testing.T) {
	tenantID := uuid.New()
	lead := domain.Lead{
		ID:       uuid.New(),
		TenantID: tenantID,
		Email:    "joe@gmail.com",
		Source:   domain.SourceOther,
		Status:   domain.StatusNew,
	}
	env := newTestEnv(t, lead)

	resp, err := env.svc.ScoreLead(context.Background(), tenantID, lead.ID)
	if err != nil {
		t.Fatalf("ScoreLead failed: %v", err)
	}

	if resp.Total < 0 || resp.Total > 100 {
		t.Fatalf("Total = %d, want within [0,100]", resp.Total)
	}
	if resp.Grade == "" {
		t.Error("response must carry a grade")
	}

	stored, _ := env.leads.GetLead(context.Background(), lead.ID, tenantID)
	if stored.Score != resp.Total {
		t.Errorf("persisted score = %d, want %d", stored.Score, resp.Total)
	}
}

func intPtr(v int) *int { return &v }
