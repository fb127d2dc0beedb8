package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Broker connects in-process relays, standing in for a Redis server when
// several hubs run in one process.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*memorySub]struct{}
}

type memorySub struct {
	instance string
	fn       func([]byte)
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*memorySub]struct{})}
}

// Relay returns a relay attached to the broker with a fresh instance id.
func (b *Broker) Relay() *MemoryRelay {
	return &MemoryRelay{broker: b, instance: uuid.NewString()}
}

// MemoryRelay is a Relay backed by a Broker. Delivery is synchronous.
type MemoryRelay struct {
	broker   *Broker
	instance string

	mu     sync.Mutex
	closed bool
	subs   []*memorySub
}

// Publish delivers payload to the subscribers of other instances.
func (r *MemoryRelay) Publish(_ context.Context, doc string, payload []byte) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg, err := wrap(r.instance, payload)
	if err != nil {
		return err
	}

	b := r.broker
	b.mu.Lock()
	var targets []*memorySub
	for s := range b.subs[Channel(doc)] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		origin, p, ok := unwrap(msg)
		if !ok || origin == s.instance {
			continue
		}
		s.fn(p)
	}
	return nil
}

// Subscribe registers fn for payloads published to doc by other instances.
func (r *MemoryRelay) Subscribe(_ context.Context, doc string, fn func(payload []byte)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	s := &memorySub{instance: r.instance, fn: fn}
	ch := Channel(doc)
	b := r.broker
	b.mu.Lock()
	if b.subs[ch] == nil {
		b.subs[ch] = make(map[*memorySub]struct{})
	}
	b.subs[ch][s] = struct{}{}
	b.mu.Unlock()
	r.subs = append(r.subs, s)

	return func() {
		b.mu.Lock()
		delete(b.subs[ch], s)
		b.mu.Unlock()
	}, nil
}

// Close removes every subscription of the relay.
func (r *MemoryRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	b := r.broker
	b.mu.Lock()
	for _, s := range r.subs {
		for _, set := range b.subs {
			delete(set, s)
		}
	}
	b.mu.Unlock()
	r.subs = nil
	return nil
}
