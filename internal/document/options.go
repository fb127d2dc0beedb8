package document

import (
	"github.com/dshills/collabedit/internal/bridge"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/logging"
)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger shared by the document's components.
func WithLogger(l *logging.Logger) Option {
	return func(d *Document) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithLoop sets the loop the document's work runs on. By default each
// document gets its own.
func WithLoop(l *event.Loop) Option {
	return func(d *Document) {
		d.loop = l
	}
}

// WithInsertFilter adds a filter for local insertions sent to the session.
func WithInsertFilter(f bridge.InsertFilter) Option {
	return func(d *Document) {
		d.filters = append(d.filters, f)
	}
}

// WithCollapseLeadingNewline enables bridge.CollapseLeadingNewline.
func WithCollapseLeadingNewline(enabled bool) Option {
	return func(d *Document) {
		if enabled {
			d.filters = append(d.filters, bridge.CollapseLeadingNewline)
		}
	}
}
