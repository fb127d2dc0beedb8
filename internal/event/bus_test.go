package event

import (
	"context"
	"errors"
	"testing"
)

type testPayload struct {
	N int
}

func TestBus_SubscribeValidation(t *testing.T) {
	bus := NewBus()

	if _, err := bus.Subscribe("a.b", nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
	if _, err := bus.SubscribeFunc("", func(context.Context, any) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("expected ErrInvalidTopic, got %v", err)
	}
	if err := bus.Publish(context.Background(), "not an event"); err != ErrInvalidEvent {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []string

	bus.Subscribe("x.y", Typed(func(_ context.Context, ev Event[testPayload]) error {
		order = append(order, "first")
		return nil
	}))
	bus.SubscribeFunc("x.*", func(context.Context, any) error {
		order = append(order, "second")
		return nil
	})
	bus.SubscribeFunc("other", func(context.Context, any) error {
		order = append(order, "never")
		return nil
	})

	if err := bus.Publish(context.Background(), NewEvent[testPayload]("x.y", testPayload{N: 1}, "test")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected delivery order: %v", order)
	}
	if s := bus.Stats(); s.Published != 1 || s.Delivered != 2 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestBus_NestedPublishIsDeferred(t *testing.T) {
	bus := NewBus()
	var log []string

	bus.Subscribe("outer", Typed(func(ctx context.Context, ev Event[testPayload]) error {
		log = append(log, "outer-a:start")
		if err := bus.Publish(ctx, NewEvent[testPayload]("inner", testPayload{}, "test")); err != nil {
			t.Errorf("nested Publish() returned %v", err)
		}
		log = append(log, "outer-a:end")
		return nil
	}))
	bus.SubscribeFunc("outer", func(context.Context, any) error {
		log = append(log, "outer-b")
		return nil
	})
	bus.SubscribeFunc("inner", func(context.Context, any) error {
		log = append(log, "inner")
		return nil
	})

	if err := bus.Publish(context.Background(), NewEvent[testPayload]("outer", testPayload{}, "test")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	want := []string{"outer-a:start", "outer-a:end", "outer-b", "inner"}
	if len(log) != len(want) {
		t.Fatalf("got %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}
	if bus.Stats().Deferred != 1 {
		t.Errorf("expected 1 deferred event, got %d", bus.Stats().Deferred)
	}
}

func TestBus_NestedErrorsReachOutermostPublish(t *testing.T) {
	bus := NewBus()
	sentinel := errors.New("boom")

	bus.SubscribeFunc("outer", func(ctx context.Context, _ any) error {
		return bus.Publish(ctx, NewEvent[testPayload]("inner", testPayload{}, "test"))
	})
	bus.SubscribeFunc("inner", func(context.Context, any) error {
		return sentinel
	})

	err := bus.Publish(context.Background(), NewEvent[testPayload]("outer", testPayload{}, "test"))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	var herr *HandlerError
	if !errors.As(err, &herr) || herr.Topic != "inner" {
		t.Errorf("expected HandlerError for inner topic, got %v", err)
	}
}

func TestBus_RecoversPanics(t *testing.T) {
	var recovered any
	bus := NewBus(WithPanicHandler(func(_ any, r any) { recovered = r }))
	delivered := false

	bus.SubscribeFunc("p", func(context.Context, any) error { panic("kaboom") })
	bus.SubscribeFunc("p", func(context.Context, any) error {
		delivered = true
		return nil
	})

	err := bus.Publish(context.Background(), NewEvent[testPayload]("p", testPayload{}, "test"))
	if !errors.Is(err, ErrHandlerPanic) {
		t.Fatalf("expected ErrHandlerPanic, got %v", err)
	}
	if recovered != "kaboom" {
		t.Errorf("panic handler got %v", recovered)
	}
	if !delivered {
		t.Error("later subscribers should still receive the event")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub, _ := bus.SubscribeFunc("u", func(context.Context, any) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), NewEvent[testPayload]("u", testPayload{}, "test"))
	if err := bus.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() failed: %v", err)
	}
	bus.Publish(context.Background(), NewEvent[testPayload]("u", testPayload{}, "test"))

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if err := bus.Unsubscribe(sub); err != ErrSubscriptionNotFound {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected no subscriptions, got %d", bus.SubscriptionCount())
	}
}

func TestTyped_IgnoresOtherPayloads(t *testing.T) {
	called := false
	h := Typed(func(context.Context, Event[testPayload]) error {
		called = true
		return nil
	})

	if err := h.Handle(context.Background(), NewEvent[string]("x", "s", "test")); err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if called {
		t.Error("handler should not be called for a different payload type")
	}
}
