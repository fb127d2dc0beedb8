package event

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/dshills/collabedit/internal/logging"
)

// Bus delivers events to subscriptions on the publishing goroutine.
//
// A Bus is owned by a single goroutine and is not safe for concurrent use;
// use a Loop to funnel work from other goroutines.
type Bus struct {
	subs   []*Subscription
	nextID uint64

	// Events waiting for delivery. Non-empty only while dispatching.
	queue       []pending
	dispatching bool

	logger       *logging.Logger
	panicHandler PanicHandler
	source       string

	stats Stats
}

type pending struct {
	ctx context.Context
	ev  any
}

// Stats holds delivery counters.
type Stats struct {
	Published uint64 // events accepted by Publish
	Deferred  uint64 // events queued because they were published by a handler
	Delivered uint64 // successful handler executions
	Failed    uint64 // handler executions that returned an error
	Panicked  uint64 // handler executions that panicked
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Source returns the default event source configured for this bus.
func (b *Bus) Source() string {
	return b.source
}

// Subscribe registers handler for every event whose topic matches pattern.
func (b *Bus) Subscribe(pattern Topic, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.Valid() {
		return nil, ErrInvalidTopic
	}

	b.nextID++
	sub := &Subscription{
		id:      subscriptionID(b.nextID),
		pattern: pattern,
		handler: handler,
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// SubscribeFunc registers a function handler.
func (b *Bus) SubscribeFunc(pattern Topic, fn HandlerFunc) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, fn)
}

// Unsubscribe cancels and removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	for i, s := range b.subs {
		if s == sub {
			sub.Cancel()
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// SubscriptionCount returns the number of registered subscriptions.
func (b *Bus) SubscriptionCount() int {
	return len(b.subs)
}

// Publish delivers ev to all matching subscriptions.
//
// When called from inside a handler the event is queued and Publish returns
// nil; the event is delivered by the outermost Publish once the current event
// has been fully delivered. The outermost call returns the joined errors of
// every delivery it performed.
func (b *Bus) Publish(ctx context.Context, ev any) error {
	t := topicOf(ev)
	if !t.Valid() {
		return ErrInvalidEvent
	}
	b.stats.Published++
	b.queue = append(b.queue, pending{ctx: ctx, ev: ev})

	if b.dispatching {
		b.stats.Deferred++
		return nil
	}

	b.dispatching = true
	defer func() { b.dispatching = false }()

	var errs []error
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue[0] = pending{}
		b.queue = b.queue[1:]
		errs = append(errs, b.deliver(next.ctx, next.ev)...)
	}
	b.queue = nil

	return errors.Join(errs...)
}

// Dispatching reports whether the bus is delivering events. Events
// published meanwhile are queued until the current delivery returns.
func (b *Bus) Dispatching() bool {
	return b.dispatching
}

// Stats returns delivery counters.
func (b *Bus) Stats() Stats {
	return b.stats
}

func (b *Bus) deliver(ctx context.Context, ev any) []error {
	t := topicOf(ev)

	// Subscriptions added during delivery only see later events.
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)

	var errs []error
	for _, sub := range subs {
		if !sub.IsActive() || !t.Matches(sub.pattern) {
			continue
		}
		if err := b.execute(ctx, ev, t, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *Bus) execute(ctx context.Context, ev any, t Topic, sub *Subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.stats.Panicked++
			err = &PanicError{
				SubscriptionID: sub.id,
				Topic:          t,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
			b.logger.Error("%v", err)
			if b.panicHandler != nil {
				b.panicHandler(ev, r)
			}
		}
	}()

	if herr := sub.handler.Handle(ctx, ev); herr != nil {
		b.stats.Failed++
		return &HandlerError{SubscriptionID: sub.id, Topic: t, Err: herr}
	}
	b.stats.Delivered++
	return nil
}
