package workload

import (
	"context"
	"testing"

	"crm_routing_backend/internal/routing/domain"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestTracker(defaultCapacity int) (*Tracker, *MemoryStore) {
	store := NewMemoryStore()
	return NewTracker(store, defaultCapacity, logger.New("development")), store
}

func TestTrackerLazilyCreatesRecordWithDefaultCapacity(t *testing.T) {
	tracker, _ := newTestTracker(10)
	tenantID := uuid.New()
	userID := uuid.New()

	w, err := tracker.Get(context.Background(), tenantID, userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if w.MaxLeadCapacity != 10 {
		t.Errorf("MaxLeadCapacity = %d, want 10", w.MaxLeadCapacity)
	}
	if !w.IsAvailable {
		t.Error("new record should start available")
	}
	if w.ActiveLeadsCount != 0 || w.TotalLeadsAssigned != 0 {
		t.Errorf("new record should start with zero counts, got active=%d total=%d",
			w.ActiveLeadsCount, w.TotalLeadsAssigned)
	}
}

func TestTrackerNonPositiveCapacityFallsBackToDomainDefault(t *testing.T) {
	tracker, _ := newTestTracker(0)
	w, err := tracker.Get(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if w.MaxLeadCapacity != domain.DefaultLeadCapacity {
		t.Errorf("MaxLeadCapacity = %d, want %d", w.MaxLeadCapacity, domain.DefaultLeadCapacity)
	}
}

func TestTrackerIncrementRaisesBothCounts(t *testing.T) {
	tracker, _ := newTestTracker(10)
	tenantID := uuid.New()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		if err := tracker.Increment(context.Background(), tenantID, userID); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	w, err := tracker.Get(context.Background(), tenantID, userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if w.ActiveLeadsCount != 3 {
		t.Errorf("ActiveLeadsCount = %d, want 3", w.ActiveLeadsCount)
	}
	if w.TotalLeadsAssigned != 3 {
		t.Errorf("TotalLeadsAssigned = %d, want 3", w.TotalLeadsAssigned)
	}
	if w.LastActivityAt == nil {
		t.Error("LastActivityAt should be stamped after an increment")
	}
}

func TestTrackerDecrementReleasesActiveOnly(t *testing.T) {
	tracker, _ := newTestTracker(10)
	tenantID := uuid.New()
	userID := uuid.New()

	if err := tracker.Increment(context.Background(), tenantID, userID); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if err := tracker.Decrement(context.Background(), tenantID, userID); err != nil {
		t.Fatalf("Decrement failed: %v", err)
	}

	w, _ := tracker.Get(context.Background(), tenantID, userID)
	if w.ActiveLeadsCount != 0 {
		t.Errorf("ActiveLeadsCount = %d, want 0", w.ActiveLeadsCount)
	}
	if w.TotalLeadsAssigned != 1 {
		t.Errorf("TotalLeadsAssigned = %d, want 1; decrement must not touch the lifetime total", w.TotalLeadsAssigned)
	}
}

func TestTrackerDecrementClampsAtZero(t *testing.T) {
	tracker, _ := newTestTracker(10)
	tenantID := uuid.New()
	userID := uuid.New()

	if err := tracker.Decrement(context.Background(), tenantID, userID); err != nil {
		t.Fatalf("Decrement on a fresh record should not error: %v", err)
	}

	w, _ := tracker.Get(context.Background(), tenantID, userID)
	if w.ActiveLeadsCount != 0 {
		t.Errorf("ActiveLeadsCount = %d, want clamp at 0", w.ActiveLeadsCount)
	}
}

func TestTrackerIsAvailable(t *testing.T) {
	tracker, store := newTestTracker(2)
	tenantID := uuid.New()
	userID := uuid.New()

	available, err := tracker.IsAvailable(context.Background(), tenantID, userID)
	if err != nil {
		t.Fatalf("IsAvailable failed: %v", err)
	}
	if !available {
		t.Fatal("fresh user under capacity should be available")
	}

	tracker.Increment(context.Background(), tenantID, userID)
	tracker.Increment(context.Background(), tenantID, userID)
	available, _ = tracker.IsAvailable(context.Background(), tenantID, userID)
	if available {
		t.Fatal("user at capacity should not be available")
	}

	tracker.Decrement(context.Background(), tenantID, userID)
	if err := store.SetAvailability(context.Background(), tenantID, userID, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}
	available, _ = tracker.IsAvailable(context.Background(), tenantID, userID)
	if available {
		t.Fatal("user marked unavailable should not be available regardless of load")
	}
}

func TestFilterAvailablePreservesOrderAndDropsIneligible(t *testing.T) {
	tracker, store := newTestTracker(2)
	tenantID := uuid.New()

	open := uuid.New()
	full := uuid.New()
	away := uuid.New()
	busy := uuid.New()

	tracker.Increment(context.Background(), tenantID, full)
	tracker.Increment(context.Background(), tenantID, full)
	if err := store.SetAvailability(context.Background(), tenantID, away, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}
	tracker.Increment(context.Background(), tenantID, busy)

	candidates, err := tracker.FilterAvailable(context.Background(), tenantID,
		[]uuid.UUID{busy, full, away, open})
	if err != nil {
		t.Fatalf("FilterAvailable failed: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].UserID != busy || candidates[1].UserID != open {
		t.Errorf("candidate order not preserved: got [%s, %s], want [%s, %s]",
			candidates[0].UserID, candidates[1].UserID, busy, open)
	}
	if candidates[0].ActiveLeads != 1 {
		t.Errorf("busy candidate ActiveLeads = %d, want 1", candidates[0].ActiveLeads)
	}
	if candidates[1].ActiveLeads != 0 {
		t.Errorf("open candidate ActiveLeads = %d, want 0", candidates[1].ActiveLeads)
	}
}

func TestSetCapacityReopensFullUser(t *testing.T) {
	tracker, store := newTestTracker(1)
	tenantID := uuid.New()
	userID := uuid.New()

	tracker.Increment(context.Background(), tenantID, userID)
	available, _ := tracker.IsAvailable(context.Background(), tenantID, userID)
	if available {
		t.Fatal("user at capacity 1 with one active lead should be full")
	}

	if err := store.SetCapacity(context.Background(), tenantID, userID, 5); err != nil {
		t.Fatalf("SetCapacity failed: %v", err)
	}
	available, _ = tracker.IsAvailable(context.Background(), tenantID, userID)
	if !available {
		t.Fatal("raising capacity above the active count should reopen the user")
	}
}
