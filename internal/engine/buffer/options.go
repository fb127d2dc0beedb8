package buffer

import "github.com/dshills/collabedit/internal/event"

// Option is a functional option for configuring a Buffer.
type Option func(*Buffer)

// WithBus sets the bus edits are published on.
func WithBus(bus *event.Bus) Option {
	return func(b *Buffer) {
		b.bus = bus
	}
}

// WithSource sets the Source recorded in published events.
func WithSource(source string) Option {
	return func(b *Buffer) {
		if source != "" {
			b.source = source
		}
	}
}

// WithObserver registers an edit observer at construction time.
func WithObserver(o EditObserver) Option {
	return func(b *Buffer) {
		b.Observe(o)
	}
}
