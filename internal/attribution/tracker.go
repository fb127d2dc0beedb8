package attribution

import (
	"context"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/engine/anchor"
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
	"github.com/dshills/collabedit/internal/logging"
)

// Range is a snapshot of one attribution range.
type Range struct {
	Start position.Point
	End   position.Point
	Span  position.Span
	Color colorful.Color
}

type entry struct {
	span  *anchor.Span
	color colorful.Color
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l.WithComponent("attribution")
		}
	}
}

// WithBus sets the bus range changes are announced on.
func WithBus(bus *event.Bus) Option {
	return func(t *Tracker) {
		t.bus = bus
	}
}

// Tracker maintains the attribution ranges of one document. It must only be
// used from the goroutine that owns the document.
type Tracker struct {
	arena  *anchor.Arena
	lines  position.LineSource
	ranges []*entry
	bus    *event.Bus
	logger *logging.Logger
	subs   []*event.Subscription
}

// New creates a Tracker whose ranges live in arena. lines provides the
// line table used to report range positions; it is normally the buffer the
// arena observes.
func New(arena *anchor.Arena, lines position.LineSource, opts ...Option) *Tracker {
	t := &Tracker{
		arena:  arena,
		lines:  lines,
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Attach subscribes the Tracker to applied edits and buffer resets on bus.
func (t *Tracker) Attach(bus *event.Bus) error {
	t.bus = bus
	changed, err := bus.Subscribe(events.TopicTextChanged, event.Typed(func(ctx context.Context, ev event.Event[events.TextChanged]) error {
		p := ev.Payload
		return t.OnEdit(ctx, p.Span, p.User, p.Removal)
	}))
	if err != nil {
		return err
	}
	reset, err := bus.Subscribe(events.TopicTextReset, event.Typed(func(context.Context, event.Event[events.TextReset]) error {
		t.Reset()
		return nil
	}))
	if err != nil {
		changed.Cancel()
		return err
	}
	t.subs = append(t.subs, changed, reset)
	return nil
}

// Detach cancels the subscriptions made by Attach.
func (t *Tracker) Detach() {
	for _, s := range t.subs {
		s.Cancel()
	}
	t.subs = nil
}

// OnEdit records an edit by u covering span. For insertions span covers the
// new text, which the buffer already contains.
func (t *Tracker) OnEdit(ctx context.Context, span position.Span, u user.User, removal bool) error {
	if removal {
		return nil
	}
	if span.IsEmpty() {
		return nil
	}

	t.Cleanup(ctx)

	color := u.Color
	n := len(t.ranges)
	for i := 0; i < n; i++ {
		existing := t.ranges[i]
		cur := existing.span.Span()
		if !cur.Touches(span) {
			continue
		}

		if user.SameColor(existing.color, color) {
			switch {
			case cur.Contains(span):
				return nil
			case cur.Start == span.End:
				existing.span.SetRange(position.Span{Start: span.Start, End: cur.End})
			case cur.End == span.Start:
				existing.span.SetRange(position.Span{Start: cur.Start, End: span.End})
			default:
				err := &InvariantError{Existing: cur, Inserted: span, Color: color}
				t.logger.Error("%v", err)
				return err
			}
			publish(ctx, t, events.TopicRangeMerged, events.RangeMerged{
				Before: cur,
				After:  existing.span.Span(),
				Color:  existing.color,
			})
			return nil
		}

		if cur.Contains(span) {
			head := position.Span{Start: cur.Start, End: span.Start}
			tail := position.Span{Start: span.End, End: cur.End}
			t.add(head, existing.color)
			existing.span.SetRange(tail)
			publish(ctx, t, events.TopicRangeSplit, events.RangeSplit{
				Head:  head,
				Tail:  tail,
				Color: existing.color,
			})
		}
	}

	t.add(span, color)
	publish(ctx, t, events.TopicRangeAdded, events.RangeAdded{Span: span, Color: color})
	return nil
}

// Cleanup drops every empty range and returns how many were dropped.
func (t *Tracker) Cleanup(ctx context.Context) int {
	kept := t.ranges[:0]
	pruned := 0
	for _, e := range t.ranges {
		if e.span.IsEmpty() {
			t.arena.Release(e.span)
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(t.ranges); i++ {
		t.ranges[i] = nil
	}
	t.ranges = kept

	if pruned > 0 {
		t.logger.Debug("pruned %d empty ranges", pruned)
		publish(ctx, t, events.TopicRangesPruned, events.RangesPruned{Count: pruned})
	}
	return pruned
}

// Reset drops every range.
func (t *Tracker) Reset() {
	for _, e := range t.ranges {
		t.arena.Release(e.span)
	}
	t.ranges = nil
}

// Len returns the number of ranges, including empty ones not yet pruned.
func (t *Tracker) Len() int {
	return len(t.ranges)
}

// Ranges returns the ranges in insertion order.
func (t *Tracker) Ranges() []Range {
	tr := position.NewTranslator(t.lines)
	out := make([]Range, len(t.ranges))
	for i, e := range t.ranges {
		s := e.span.Span()
		out[i] = Range{
			Start: tr.ToPoint(s.Start),
			End:   tr.ToPoint(s.End),
			Span:  s,
			Color: e.color,
		}
	}
	return out
}

// ColorAt returns the color of the range covering the character at o.
func (t *Tracker) ColorAt(o position.Offset) (colorful.Color, bool) {
	for _, e := range t.ranges {
		s := e.span.Span()
		if s.Start <= o && o < s.End {
			return e.color, true
		}
	}
	return colorful.Color{}, false
}

func (t *Tracker) add(s position.Span, color colorful.Color) {
	t.ranges = append(t.ranges, &entry{span: t.arena.Add(s), color: color})
}

func publish[T any](ctx context.Context, t *Tracker, topic event.Topic, payload T) {
	if t.bus == nil {
		return
	}
	if err := t.bus.Publish(ctx, event.NewEvent(topic, payload, t.bus.Source())); err != nil {
		t.logger.Warn("publishing %s: %v", topic, err)
	}
}
