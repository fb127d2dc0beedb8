package bridge

import (
	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/logging"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l.WithComponent("bridge")
		}
	}
}

// WithCodec sets the session text codec. Defaults to UTF-8.
func WithCodec(c *codec.Codec) Option {
	return func(a *Adapter) {
		if c != nil {
			a.codec = c
		}
	}
}

// WithInsertFilter adds a filter applied to local insertions before they
// are encoded. Filters run in the order given.
func WithInsertFilter(f InsertFilter) Option {
	return func(a *Adapter) {
		if f != nil {
			a.filters = append(a.filters, f)
		}
	}
}

// WithSender sets the session operations are forwarded to.
func WithSender(s Sender) Option {
	return func(a *Adapter) {
		a.sender = s
	}
}

// WithBus sets the bus applied edits are announced on.
func WithBus(bus *event.Bus) Option {
	return func(a *Adapter) {
		a.bus = bus
	}
}
