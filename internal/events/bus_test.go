package events

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestEmitSyncRunsAllHandlers(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var got []string

	for _, name := range []string{"cli", "battlelog", "telemetry"} {
		name := name
		bus.Subscribe(EventTurnCommitted, name, func(ctx context.Context, e Event) error {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
			return nil
		})
	}

	if err := bus.EmitSync(context.Background(), Event{Type: EventTurnCommitted}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("ran %d handlers, want 3", len(got))
	}
}

func TestEmitSyncReturnsHandlerError(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	bus.Subscribe(EventBattleEnded, "bad", func(ctx context.Context, e Event) error {
		return boom
	})
	if err := bus.EmitSync(context.Background(), Event{Type: EventBattleEnded}); !errors.Is(err, boom) {
		t.Errorf("EmitSync error = %v, want boom", err)
	}
}

func TestEmitSyncRecoversPanic(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(EventChatReceived, "panicky", func(ctx context.Context, e Event) error {
		panic("handler bug")
	})
	ran := false
	bus.Subscribe(EventChatReceived, "steady", func(ctx context.Context, e Event) error {
		ran = true
		return nil
	})

	if err := bus.EmitSync(context.Background(), Event{Type: EventChatReceived}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("a panicking handler must not prevent the others")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(EventPeerLost, "a", func(ctx context.Context, e Event) error { return nil })
	bus.Subscribe(EventPeerLost, "b", func(ctx context.Context, e Event) error { return nil })

	bus.Unsubscribe(EventPeerLost, "a")
	if n := bus.HandlerCount(EventPeerLost); n != 1 {
		t.Errorf("handler count after unsubscribe = %d, want 1", n)
	}
	bus.Unsubscribe(EventShutdown, "missing")
}

func TestStopRejectsFurtherEvents(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(EventShutdown, "counter", func(ctx context.Context, e Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	bus.EmitSync(context.Background(), Event{Type: EventShutdown})
	bus.Stop()
	bus.Emit(context.Background(), Event{Type: EventShutdown})
	bus.EmitSync(context.Background(), Event{Type: EventShutdown})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("handler ran %d times, want 1 (before Stop only)", count)
	}
}
