package strategy

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCursorStoreIsMonotonicPerRule(t *testing.T) {
	store := NewMemoryCursorStore()
	ruleA := uuid.New()
	ruleB := uuid.New()

	for want := uint64(1); want <= 5; want++ {
		got, err := store.Next(context.Background(), ruleA)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Fatalf("cursor for rule A = %d, want %d", got, want)
		}
	}

	got, err := store.Next(context.Background(), ruleB)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("rule B cursor = %d, want an independent counter starting at 1", got)
	}
}

func TestMemoryCursorStoreConcurrentNextNeverRepeats(t *testing.T) {
	store := NewMemoryCursorStore()
	ruleID := uuid.New()

	const workers = 16
	const perWorker = 50

	results := make(chan uint64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				v, err := store.Next(context.Background(), ruleID)
				if err != nil {
					t.Errorf("Next failed: %v", err)
					return
				}
				results <- v
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, workers*perWorker)
	for v := range results {
		if seen[v] {
			t.Fatalf("cursor value %d handed out twice", v)
		}
		seen[v] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d distinct values, want %d", len(seen), workers*perWorker)
	}
}

func TestRedisCursorStoreSharesStateAcrossClients(t *testing.T) {
	srv := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		clientA.Close()
		clientB.Close()
	})

	ruleID := uuid.New()
	storeA := NewRedisCursorStore(clientA)
	storeB := NewRedisCursorStore(clientB)

	first, err := storeA.Next(context.Background(), ruleID)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	second, err := storeB.Next(context.Background(), ruleID)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("got %d then %d, want the two processes to share one counter", first, second)
	}
}

func TestRedisCursorStoreKeysAreNamespacedPerRule(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisCursorStore(client)
	ruleID := uuid.New()

	if _, err := store.Next(context.Background(), ruleID); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !srv.Exists("routing:rr-cursor:" + ruleID.String()) {
		t.Fatal("expected a per-rule cursor key in redis")
	}
}
