package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncDeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var got []string
	bus.Subscribe("thing.happened", HandlerFunc(func(_ context.Context, e Event) error {
		got = append(got, e.EventName())
		return nil
	}))
	bus.Subscribe("other.happened", HandlerFunc(func(_ context.Context, _ Event) error {
		t.Error("handler for a different event name must not fire")
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"}); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}
	if len(got) != 1 || got[0] != "thing.happened" {
		t.Fatalf("got deliveries %v, want exactly one for the published name", got)
	}
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	errBoom := errors.New("boom")

	bus.Subscribe("thing.happened", HandlerFunc(func(_ context.Context, _ Event) error {
		return errBoom
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(_ context.Context, _ Event) error {
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want the handler error surfaced", err)
	}
}

func TestPublishIsAsynchronous(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("thing.happened", HandlerFunc(func(_ context.Context, _ Event) error {
		defer wg.Done()
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestNewBaseEventAssignsUniqueIDs(t *testing.T) {
	a := NewBaseEvent()
	b := NewBaseEvent()
	if a.EventID() == b.EventID() {
		t.Fatal("event ids must be unique per instance")
	}
	if a.OccurredAt().IsZero() {
		t.Fatal("timestamp must be set")
	}
}
