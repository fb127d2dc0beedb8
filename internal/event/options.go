package event

import "github.com/dshills/collabedit/internal/logging"

// PanicHandler is invoked after a handler panic has been recovered.
type PanicHandler func(ev any, recovered any)

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for dropped and failed deliveries.
func WithLogger(l *logging.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPanicHandler sets a callback for recovered handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) {
		b.panicHandler = h
	}
}

// WithSource sets the default Source recorded in events built by the bus.
func WithSource(source string) BusOption {
	return func(b *Bus) {
		b.source = source
	}
}
