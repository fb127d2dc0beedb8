package anchor

import "github.com/dshills/collabedit/internal/engine/position"

// AnchoredSpan is a range that follows its text as the buffer changes.
type AnchoredSpan interface {
	Start() position.Offset
	End() position.Offset
	Span() position.Span
	IsEmpty() bool
	Contains(s position.Span) bool
	SetRange(s position.Span)
	GrowOnInsert(at position.Offset, n int)
	ShrinkOnDelete(at position.Offset, n int)
}

// bounds is the storage of one arena slot.
type bounds struct {
	start position.Offset
	end   position.Offset
	used  bool
}

func (b *bounds) growOnInsert(at position.Offset, n int) {
	if n <= 0 {
		return
	}
	if b.start >= at {
		b.start += n
	}
	if b.end > at {
		b.end += n
	}
	if b.end < b.start {
		b.end = b.start
	}
}

func (b *bounds) shrinkOnDelete(at position.Offset, n int) {
	if n <= 0 {
		return
	}
	b.start = shiftOnDelete(b.start, at, n)
	b.end = shiftOnDelete(b.end, at, n)
}

func shiftOnDelete(p, at position.Offset, n int) position.Offset {
	switch {
	case p >= at+n:
		return p - n
	case p > at:
		return at
	default:
		return p
	}
}

// Span is a handle to one slot of an Arena. It implements AnchoredSpan.
type Span struct {
	arena *Arena
	index int
}

var _ AnchoredSpan = (*Span)(nil)

func (s *Span) slot() *bounds {
	return &s.arena.slots[s.index]
}

// Index returns the arena slot of the span.
func (s *Span) Index() int {
	return s.index
}

// Valid reports whether the span has not been released.
func (s *Span) Valid() bool {
	return s.arena != nil && s.index < len(s.arena.slots) && s.slot().used
}

// Start returns the inclusive start offset.
func (s *Span) Start() position.Offset {
	return s.slot().start
}

// End returns the exclusive end offset.
func (s *Span) End() position.Offset {
	return s.slot().end
}

// Span returns the current bounds.
func (s *Span) Span() position.Span {
	b := s.slot()
	return position.Span{Start: b.start, End: b.end}
}

// IsEmpty returns true if the span covers no text.
func (s *Span) IsEmpty() bool {
	b := s.slot()
	return b.end <= b.start
}

// Contains reports whether other lies entirely within the span.
func (s *Span) Contains(other position.Span) bool {
	return s.Span().Contains(other)
}

// SetRange moves both bounds. A reversed range is collapsed at its start.
func (s *Span) SetRange(r position.Span) {
	b := s.slot()
	b.start, b.end = r.Start, r.End
	if b.end < b.start {
		b.end = b.start
	}
}

// GrowOnInsert adjusts the span for n characters inserted at at.
func (s *Span) GrowOnInsert(at position.Offset, n int) {
	s.slot().growOnInsert(at, n)
}

// ShrinkOnDelete adjusts the span for n characters deleted at at.
func (s *Span) ShrinkOnDelete(at position.Offset, n int) {
	s.slot().shrinkOnDelete(at, n)
}
