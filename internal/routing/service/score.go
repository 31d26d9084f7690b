package service

import (
	"context"
	"errors"

	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/scoring"
	"crm_routing_backend/internal/routing/transport"

	"github.com/google/uuid"
)

// ScoreLead recomputes a lead's score breakdown, persists the total on the
// lead record, and returns the breakdown with its grade.
func (s *Service) ScoreLead(ctx context.Context, tenantID, leadID uuid.UUID) (transport.ScoreResponse, error) {
	lead, err := s.leads.GetLead(ctx, leadID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ScoreResponse{}, ErrLeadNotFound
		}
		return transport.ScoreResponse{}, err
	}

	breakdown := scoring.Score(lead)
	if breakdown.Total != lead.Score {
		if err := s.leads.UpdateLeadScore(ctx, leadID, tenantID, breakdown.Total); err != nil {
			return transport.ScoreResponse{}, err
		}
	}

	grade := scoring.GetGrade(breakdown.Total)
	return transport.ScoreResponse{
		LeadID:       leadID,
		Demographic:  breakdown.Demographic,
		Firmographic: breakdown.Firmographic,
		Behavioral:   breakdown.Behavioral,
		Source:       breakdown.Source,
		Total:        breakdown.Total,
		Grade:        grade.Letter,
		GradeLabel:   grade.Description,
	}, nil
}
