package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishInvokesAllHandlers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	calls := 0
	dispatcher.Subscribe(EventSessionStarted, func(ctx context.Context, event Event) error {
		calls++
		return nil
	})
	dispatcher.Subscribe(EventSessionStarted, func(ctx context.Context, event Event) error {
		calls++
		return nil
	})
	dispatcher.Subscribe(EventSessionStopped, func(ctx context.Context, event Event) error {
		t.Error("handler for different event type invoked")
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventSessionStarted}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPublishContinuesPastFailingHandler(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	dispatcher.Subscribe(EventEntryCreated, func(ctx context.Context, event Event) error {
		return errors.New("handler exploded")
	})
	reached := false
	dispatcher.Subscribe(EventEntryCreated, func(ctx context.Context, event Event) error {
		reached = true
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventEntryCreated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !reached {
		t.Error("second handler not reached after first failed")
	}
}
