package workload

import (
	"context"
	"sync"
	"time"

	"crm_routing_backend/internal/routing/domain"

	"github.com/google/uuid"
)

type workloadKey struct {
	tenantID uuid.UUID
	userID   uuid.UUID
}

// MemoryStore is an in-process Store used in tests and single-instance
// deployments without a database. All mutations hold the store lock, which
// gives the same lost-update protection as the SQL single-statement updates.
type MemoryStore struct {
	mu      sync.Mutex
	records map[workloadKey]*domain.UserWorkload
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory workload store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[workloadKey]*domain.UserWorkload)}
}

// Ensure returns the record for a user, creating it if absent.
func (s *MemoryStore) Ensure(_ context.Context, tenantID, userID uuid.UUID, defaultCapacity int) (domain.UserWorkload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := workloadKey{tenantID: tenantID, userID: userID}
	if w, ok := s.records[key]; ok {
		return *w, nil
	}

	now := time.Now().UTC()
	w := &domain.UserWorkload{
		TenantID:        tenantID,
		UserID:          userID,
		MaxLeadCapacity: defaultCapacity,
		IsAvailable:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.records[key] = w
	return *w, nil
}

// Increment raises active and total counts by one.
func (s *MemoryStore) Increment(_ context.Context, tenantID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.records[workloadKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	w.ActiveLeadsCount++
	w.TotalLeadsAssigned++
	w.LastActivityAt = &now
	w.UpdatedAt = now
	return nil
}

// Decrement lowers the active count by one, floored at zero.
func (s *MemoryStore) Decrement(_ context.Context, tenantID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.records[workloadKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return nil
	}
	if w.ActiveLeadsCount > 0 {
		w.ActiveLeadsCount--
	}
	now := time.Now().UTC()
	w.LastActivityAt = &now
	w.UpdatedAt = now
	return nil
}

// SetAvailability toggles a user's availability flag.
func (s *MemoryStore) SetAvailability(ctx context.Context, tenantID, userID uuid.UUID, available bool) error {
	if _, err := s.Ensure(ctx, tenantID, userID, domain.DefaultLeadCapacity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.records[workloadKey{tenantID: tenantID, userID: userID}]
	w.IsAvailable = available
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// SetCapacity adjusts a user's maximum lead capacity. An active count above
// the new capacity is left as-is; the gate simply stops offering the user.
func (s *MemoryStore) SetCapacity(ctx context.Context, tenantID, userID uuid.UUID, capacity int) error {
	if _, err := s.Ensure(ctx, tenantID, userID, capacity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.records[workloadKey{tenantID: tenantID, userID: userID}]
	w.MaxLeadCapacity = capacity
	w.UpdatedAt = time.Now().UTC()
	return nil
}
