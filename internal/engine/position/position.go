package position

import "fmt"

// Offset is a character index from the start of a document.
type Offset = int

// Point is a 0-indexed line and column, the column counted in characters.
type Point struct {
	Line   int
	Column int
}

// String returns a human-readable representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%d:%d)", p.Line, p.Column)
}

// Compare returns -1 if p < other, 0 if p == other, 1 if p > other.
func (p Point) Compare(other Point) int {
	if p.Line < other.Line {
		return -1
	}
	if p.Line > other.Line {
		return 1
	}
	if p.Column < other.Column {
		return -1
	}
	if p.Column > other.Column {
		return 1
	}
	return 0
}

// Before returns true if p comes before other.
func (p Point) Before(other Point) bool {
	return p.Compare(other) < 0
}

// After returns true if p comes after other.
func (p Point) After(other Point) bool {
	return p.Compare(other) > 0
}

// Range is a pair of points, Start inclusive and End exclusive.
type Range struct {
	Start Point
	End   Point
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%s-%s)", r.Start, r.End)
}

// IsEmpty returns true if the range covers no text.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Span is a pair of offsets, Start inclusive and End exclusive.
type Span struct {
	Start Offset
	End   Offset
}

// NewSpan creates a span of n characters starting at start.
func NewSpan(start Offset, n int) Span {
	return Span{Start: start, End: start + n}
}

// String returns a human-readable representation of the span.
func (s Span) String() string {
	return fmt.Sprintf("[%d:%d)", s.Start, s.End)
}

// Len returns the number of characters covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty returns true if the span covers no text.
func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Touches reports whether s and other overlap or share a boundary.
func (s Span) Touches(other Span) bool {
	return !(s.End < other.Start || s.Start > other.End)
}
