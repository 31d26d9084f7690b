package service

import (
	"context"
	"errors"

	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/transport"
	"crm_routing_backend/platform/apperr"

	"github.com/google/uuid"
)

var ErrWorkloadNotFound = apperr.NotFound("workload record not found")

// ListWorkloads returns every tracked workload for the tenant.
func (s *Service) ListWorkloads(ctx context.Context, tenantID uuid.UUID) ([]transport.WorkloadResponse, error) {
	workloads, err := s.workloads.ListWorkloads(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.WorkloadResponse, 0, len(workloads))
	for _, w := range workloads {
		out = append(out, transport.WorkloadFromDomain(w))
	}
	return out, nil
}

// SetAvailability toggles whether a user may receive routed leads.
func (s *Service) SetAvailability(ctx context.Context, tenantID, userID uuid.UUID, available bool) error {
	if err := s.workloads.SetAvailability(ctx, tenantID, userID, available); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkloadNotFound
		}
		return err
	}
	return nil
}

// SetCapacity changes a user's max lead capacity. Lowering it below the
// current active count is allowed; the gate only blocks future selections.
func (s *Service) SetCapacity(ctx context.Context, tenantID, userID uuid.UUID, capacity int) error {
	if err := s.workloads.SetCapacity(ctx, tenantID, userID, capacity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkloadNotFound
		}
		return err
	}
	return nil
}
