package transport

import (
	"time"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

// Request DTOs

type RuleConditionsPayload struct {
	Sources        []string `json:"sources,omitempty" validate:"omitempty,dive,oneof=Referral Partner Webinar ContentDownload Website EmailCampaign TradeShow SocialMedia Advertisement ColdCall Other"`
	ScoreMin       *int     `json:"scoreMin,omitempty" validate:"omitempty,min=0,max=100"`
	ScoreMax       *int     `json:"scoreMax,omitempty" validate:"omitempty,min=0,max=100"`
	Statuses       []string `json:"statuses,omitempty" validate:"omitempty,dive,oneof=New Contacted Nurturing Qualified Unqualified Converted"`
	CompanySizeMin *int     `json:"companySizeMin,omitempty" validate:"omitempty,min=0"`
	CompanySizeMax *int     `json:"companySizeMax,omitempty" validate:"omitempty,min=0"`
}

type CreateRuleRequest struct {
	Name             string                `json:"name" validate:"required,min=1,max=200"`
	PriorityOrder    int                   `json:"priorityOrder" validate:"min=0"`
	IsActive         *bool                 `json:"isActive,omitempty"`
	Conditions       RuleConditionsPayload `json:"conditions"`
	Strategy         string                `json:"strategy" validate:"required,oneof=RoundRobin LoadBalanced Random SkillBased TerritoryBased"`
	CandidateUserIDs []uuid.UUID           `json:"candidateUserIds,omitempty"`
	CandidateTeamIDs []uuid.UUID           `json:"candidateTeamIds,omitempty"`
}

type UpdateRuleRequest struct {
	Name             *string                `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PriorityOrder    *int                   `json:"priorityOrder,omitempty" validate:"omitempty,min=0"`
	IsActive         *bool                  `json:"isActive,omitempty"`
	Conditions       *RuleConditionsPayload `json:"conditions,omitempty"`
	Strategy         *string                `json:"strategy,omitempty" validate:"omitempty,oneof=RoundRobin LoadBalanced Random SkillBased TerritoryBased"`
	CandidateUserIDs []uuid.UUID            `json:"candidateUserIds,omitempty"`
	CandidateTeamIDs []uuid.UUID            `json:"candidateTeamIds,omitempty"`
}

type ReassignLeadRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Reason string    `json:"reason,omitempty" validate:"max=500"`
}

type SetAvailabilityRequest struct {
	IsAvailable bool `json:"isAvailable"`
}

type SetCapacityRequest struct {
	MaxLeadCapacity int `json:"maxLeadCapacity" validate:"required,min=1,max=1000"`
}

type ListQueueRequest struct {
	Status *string `form:"status" validate:"omitempty,oneof=Pending Processing Assigned Failed"`
	Limit  int     `form:"limit" validate:"min=0,max=200"`
}

type ProcessQueueRequest struct {
	BatchSize int `json:"batchSize,omitempty" validate:"omitempty,min=1,max=200"`
}

// Response DTOs

type RuleResponse struct {
	ID               uuid.UUID             `json:"id"`
	Name             string                `json:"name"`
	PriorityOrder    int                   `json:"priorityOrder"`
	IsActive         bool                  `json:"isActive"`
	Conditions       RuleConditionsPayload `json:"conditions"`
	Strategy         string                `json:"strategy"`
	CandidateUserIDs []uuid.UUID           `json:"candidateUserIds"`
	CandidateTeamIDs []uuid.UUID           `json:"candidateTeamIds"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

type AssignmentResponse struct {
	LeadID  uuid.UUID  `json:"leadId"`
	UserID  *uuid.UUID `json:"userId,omitempty"`
	RuleID  *uuid.UUID `json:"ruleId,omitempty"`
	Method  string     `json:"method,omitempty"`
	Queued  bool       `json:"queued"`
	QueueID *uuid.UUID `json:"queueId,omitempty"`
}

type ScoreResponse struct {
	LeadID       uuid.UUID `json:"leadId"`
	Demographic  int       `json:"demographic"`
	Firmographic int       `json:"firmographic"`
	Behavioral   int       `json:"behavioral"`
	Source       int       `json:"source"`
	Total        int       `json:"total"`
	Grade        string    `json:"grade"`
	GradeLabel   string    `json:"gradeLabel"`
}

type QueueEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	LeadID         uuid.UUID  `json:"leadId"`
	Status         string     `json:"status"`
	PriorityScore  int        `json:"priorityScore"`
	AttemptCount   int        `json:"attemptCount"`
	MaxAttempts    int        `json:"maxAttempts"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	NextAttemptAt  *time.Time `json:"nextAttemptAt,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
	AssignedUserID *uuid.UUID `json:"assignedUserId,omitempty"`
	RuleID         *uuid.UUID `json:"ruleId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ProcessQueueResponse struct {
	Claimed  int `json:"claimed"`
	Assigned int `json:"assigned"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
}

type HistoryEntryResponse struct {
	ID         uuid.UUID  `json:"id"`
	LeadID     uuid.UUID  `json:"leadId"`
	RuleID     *uuid.UUID `json:"ruleId,omitempty"`
	FromUserID *uuid.UUID `json:"fromUserId,omitempty"`
	ToUserID   uuid.UUID  `json:"toUserId"`
	Method     string     `json:"method"`
	Reason     string     `json:"reason,omitempty"`
	ActorID    uuid.UUID  `json:"actorId"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type WorkloadResponse struct {
	UserID             uuid.UUID  `json:"userId"`
	ActiveLeadsCount   int        `json:"activeLeadsCount"`
	TotalLeadsAssigned int        `json:"totalLeadsAssigned"`
	MaxLeadCapacity    int        `json:"maxLeadCapacity"`
	IsAvailable        bool       `json:"isAvailable"`
	ConversionRate     float64    `json:"conversionRate"`
	LastActivityAt     *time.Time `json:"lastActivityAt,omitempty"`
}

// Mappers

func (p RuleConditionsPayload) ToDomain() domain.RuleConditions {
	c := domain.RuleConditions{
		ScoreMin:       p.ScoreMin,
		ScoreMax:       p.ScoreMax,
		CompanySizeMin: p.CompanySizeMin,
		CompanySizeMax: p.CompanySizeMax,
	}
	for _, s := range p.Sources {
		c.Sources = append(c.Sources, domain.LeadSource(s))
	}
	for _, s := range p.Statuses {
		c.Statuses = append(c.Statuses, domain.LeadStatus(s))
	}
	return c
}

func ConditionsFromDomain(c domain.RuleConditions) RuleConditionsPayload {
	p := RuleConditionsPayload{
		ScoreMin:       c.ScoreMin,
		ScoreMax:       c.ScoreMax,
		CompanySizeMin: c.CompanySizeMin,
		CompanySizeMax: c.CompanySizeMax,
	}
	for _, s := range c.Sources {
		p.Sources = append(p.Sources, string(s))
	}
	for _, s := range c.Statuses {
		p.Statuses = append(p.Statuses, string(s))
	}
	return p
}

func RuleFromDomain(r domain.AssignmentRule) RuleResponse {
	return RuleResponse{
		ID:               r.ID,
		Name:             r.Name,
		PriorityOrder:    r.PriorityOrder,
		IsActive:         r.IsActive,
		Conditions:       ConditionsFromDomain(r.Conditions),
		Strategy:         string(r.Strategy),
		CandidateUserIDs: r.CandidateUserIDs,
		CandidateTeamIDs: r.CandidateTeamIDs,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func QueueEntryFromDomain(e domain.RoutingQueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:             e.ID,
		LeadID:         e.LeadID,
		Status:         string(e.Status),
		PriorityScore:  e.PriorityScore,
		AttemptCount:   e.AttemptCount,
		MaxAttempts:    e.MaxAttempts,
		LastAttemptAt:  e.LastAttemptAt,
		NextAttemptAt:  e.NextAttemptAt,
		FailureReason:  e.FailureReason,
		AssignedUserID: e.AssignedUserID,
		RuleID:         e.RuleID,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func HistoryFromDomain(h domain.AssignmentHistory) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:         h.ID,
		LeadID:     h.LeadID,
		RuleID:     h.RuleID,
		FromUserID: h.FromUserID,
		ToUserID:   h.ToUserID,
		Method:     string(h.Method),
		Reason:     h.Reason,
		ActorID:    h.ActorID,
		CreatedAt:  h.CreatedAt,
	}
}

func WorkloadFromDomain(w domain.UserWorkload) WorkloadResponse {
	return WorkloadResponse{
		UserID:             w.UserID,
		ActiveLeadsCount:   w.ActiveLeadsCount,
		TotalLeadsAssigned: w.TotalLeadsAssigned,
		MaxLeadCapacity:    w.MaxLeadCapacity,
		IsAvailable:        w.IsAvailable,
		ConversionRate:     w.ConversionRate,
		LastActivityAt:     w.LastActivityAt,
	}
}
